package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/middleware"
  "github.com/hermes-mma/hermes-backend/internal/services"
)

const submitMessageUsage = "Supply any valid json to send a message to kafka."

const submitCandidatesUsage = `This endpoint is used to send a message with a list of potential candidates corresponding to a
non-localized event.

Requests should be structured as below:

{title: <Title of the message>,
 topic: <kafka topic to post message to>,
 submitter: <submitter of the message>,
 authors: <Text full list of authors on a message>
 message_text: <Text of the message to send>,
 event_id: <ID of the non-localized event for these candidates>,
 data: {candidates: [{candidate_id: <ID of the candidate>,
          ra: <Right Ascension in hh:mm:ss.ssss or decimal degrees>,
          dec: <Declination in dd:mm:ss.ssss or decimal degrees>,
          discovery_date: <Date/time of the candidate discovery>,
          date_format: <Date format reference layout or "mjd" or "jd">,
          telescope: <Discovery telescope>,
          instrument: <Discovery instrument>,
          band: <Wavelength band of the discovery observation>,
          brightness: <Brightness of the candidate at discovery>,
          brightness_error: <Brightness error of the candidate at discovery>,
          brightness_unit: <Brightness units for the discovery,
                           current supported values: [AB mag, Vega mag]>
                   }, ...]}
}`

const submitPhotometryUsage = `This endpoint is used to send a message to report photometry of one or more targets.

Requests should be structured as below:

{title: <Title of the message>,
 topic: <kafka topic to post message to>,
 submitter: <submitter of the message>,
 authors: <Text full list of authors on a message>
 message_text: <Text of the message to send>,
 event_id: <ID of the non-localized event for this photometry>,
 data: {targets: [{name: <Name of the observed target>,
          ra: <Right Ascension in hh:mm:ss.ssss or decimal degrees>,
          dec: <Declination in dd:mm:ss.ssss or decimal degrees>}, ...],
        photometry: [{target_name: <Name of the observed target>,
          date_obs: <Date/time of the observation>,
          telescope: <Observation telescope>,
          instrument: <Observation instrument>,
          bandpass: <Wavelength band of the observation>,
          brightness: <Brightness observed>,
          brightness_error: <Brightness error observed>,
          brightness_unit: <Brightness units for the observation,
                           current supported values: [AB mag, Vega mag, mJy, and erg / s / cm² / Å]>
                   }, ...]}
}`

type SubmitHandler struct {
  log           *logger.Logger
  submitService services.SubmitService
}

func NewSubmitHandler(log *logger.Logger, submitService services.SubmitService) *SubmitHandler {
  return &SubmitHandler{
    log:           log.With("handler", "SubmitHandler"),
    submitService: submitService,
  }
}

func (h *SubmitHandler) DescribeMessage(c *gin.Context) {
  RespondOK(c, gin.H{"message": submitMessageUsage})
}

func (h *SubmitHandler) DescribeCandidates(c *gin.Context) {
  RespondOK(c, gin.H{"message": submitCandidatesUsage})
}

func (h *SubmitHandler) DescribePhotometry(c *gin.Context) {
  RespondOK(c, gin.H{"message": submitPhotometryUsage})
}

// SubmitMessage publishes a free-form message after the universal field
// checks.
func (h *SubmitHandler) SubmitMessage(c *gin.Context) {
  h.submit(c, services.ValidateMessage)
}

func (h *SubmitHandler) SubmitCandidates(c *gin.Context) {
  h.submit(c, services.ValidateCandidates)
}

func (h *SubmitHandler) SubmitPhotometry(c *gin.Context) {
  h.submit(c, services.ValidatePhotometry)
}

func (h *SubmitHandler) submit(c *gin.Context, validate func(*services.SubmittedMessage) services.ValidationErrors) {
  var message services.SubmittedMessage
  if err := c.ShouldBindJSON(&message); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_payload", err)
    return
  }
  if errs := validate(&message); !errs.Empty() {
    c.JSON(http.StatusBadRequest, errs)
    return
  }

  var creds *services.HopCredentials
  if session := middleware.GetSession(c); session != nil {
    creds = session.Credentials
  }
  id, err := h.submitService.Submit(c.Request.Context(), creds, &message)
  if err != nil {
    h.log.Error("Submit failed", "topic", message.Topic, "error", err)
    RespondError(c, http.StatusInternalServerError, "submit_failed", err)
    return
  }
  RespondOK(c, gin.H{"message": "Message was submitted successfully.", "uuid": id.String()})
}
