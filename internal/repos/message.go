package repos

import (
  "context"
  "fmt"
  "strconv"
  "strings"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/hermes-mma/hermes-backend/internal/logger"
  "github.com/hermes-mma/hermes-backend/internal/types"
)

// MessageFilter mirrors the query parameters accepted by the messages list
// endpoint. ConeSearch is "ra,dec,radius" in decimal degrees. PolygonSearch
// is comma-separated pairs of space-delimited coordinates in degrees.
type MessageFilter struct {
  Topic             string
  TitleContains     string
  AuthorContains    string
  TextContains      string
  EventIDContains   string
  PublishedAfter    *time.Time
  PublishedBefore   *time.Time
  ConeSearch        string
  PolygonSearch     string
  Limit             int
  Offset            int
}

type MessageRepo interface {
  Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error)
  Save(ctx context.Context, tx *gorm.DB, message *types.Message) error
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Message, error)
  GetByUUID(ctx context.Context, tx *gorm.DB, messageUUID uuid.UUID) (*types.Message, error)
  GetOrCreate(ctx context.Context, tx *gorm.DB, message *types.Message) (*types.Message, bool, error)
  GetOrCreateByText(ctx context.Context, tx *gorm.DB, message *types.Message) (*types.Message, bool, error)
  List(ctx context.Context, tx *gorm.DB, filter MessageFilter) ([]*types.Message, int64, error)
  DistinctTopics(ctx context.Context, tx *gorm.DB) ([]string, error)
  AddTarget(ctx context.Context, tx *gorm.DB, message *types.Message, target *types.Target) error
}

type messageRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
  repoLog := baseLog.With("repo", "MessageRepo")
  return &messageRepo{db: db, log: repoLog}
}

func (mr *messageRepo) Create(ctx context.Context, tx *gorm.DB, messages []*types.Message) ([]*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  if len(messages) == 0 {
    return []*types.Message{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&messages).Error; err != nil {
    return nil, err
  }

  return messages, nil
}

func (mr *messageRepo) Save(ctx context.Context, tx *gorm.DB, message *types.Message) error {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }
  return transaction.WithContext(ctx).Save(message).Error
}

func (mr *messageRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  var result types.Message
  if err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (mr *messageRepo) GetByUUID(ctx context.Context, tx *gorm.DB, messageUUID uuid.UUID) (*types.Message, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  var result types.Message
  if err := transaction.WithContext(ctx).
    Where("uuid = ?", messageUUID).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

// GetOrCreate looks a message up by (topic, uuid) and creates it with the
// given fields when absent. Ingest handlers rely on this to make re-reading
// a stream idempotent.
func (mr *messageRepo) GetOrCreate(ctx context.Context, tx *gorm.DB, message *types.Message) (*types.Message, bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  var existing types.Message
  err := transaction.WithContext(ctx).
    Where("topic = ? AND uuid = ?", message.Topic, message.UUID).
    First(&existing).Error
  if err == nil {
    return &existing, false, nil
  }
  if err != gorm.ErrRecordNotFound {
    return nil, false, err
  }

  if message.ID == uuid.Nil {
    message.ID = uuid.New()
  }
  if err := transaction.WithContext(ctx).Create(message).Error; err != nil {
    return nil, false, err
  }
  return message, true, nil
}

// GetOrCreateByText matches on (topic, message_text) instead of uuid, for
// streams whose producers attach no message id header.
func (mr *messageRepo) GetOrCreateByText(ctx context.Context, tx *gorm.DB, message *types.Message) (*types.Message, bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  var existing types.Message
  err := transaction.WithContext(ctx).
    Where("topic = ? AND message_text = ?", message.Topic, message.MessageText).
    First(&existing).Error
  if err == nil {
    return &existing, false, nil
  }
  if err != gorm.ErrRecordNotFound {
    return nil, false, err
  }

  if message.ID == uuid.Nil {
    message.ID = uuid.New()
  }
  if err := transaction.WithContext(ctx).Create(message).Error; err != nil {
    return nil, false, err
  }
  return message, true, nil
}

func (mr *messageRepo) List(ctx context.Context, tx *gorm.DB, filter MessageFilter) ([]*types.Message, int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  query := transaction.WithContext(ctx).Model(&types.Message{})

  if filter.Topic != "" {
    query = query.Where("message.topic = ?", filter.Topic)
  }
  if filter.TitleContains != "" {
    query = query.Where("message.title ILIKE ?", "%"+filter.TitleContains+"%")
  }
  if filter.AuthorContains != "" {
    query = query.Where("message.authors ILIKE ?", "%"+filter.AuthorContains+"%")
  }
  if filter.TextContains != "" {
    query = query.Where("message.message_text ILIKE ?", "%"+filter.TextContains+"%")
  }
  if filter.PublishedAfter != nil {
    query = query.Where("message.published >= ?", *filter.PublishedAfter)
  }
  if filter.PublishedBefore != nil {
    query = query.Where("message.published <= ?", *filter.PublishedBefore)
  }
  if filter.EventIDContains != "" {
    query = query.Where(
      "message.id IN (?)",
      transaction.WithContext(ctx).
        Table("event_references").
        Select("event_references.message_id").
        Joins("JOIN nonlocalizedevent ON nonlocalizedevent.id = event_references.non_localized_event_id").
        Where("nonlocalizedevent.event_id ILIKE ?", "%"+filter.EventIDContains+"%"),
    )
  }
  if filter.ConeSearch != "" {
    cone, err := ParseConeSearch(filter.ConeSearch)
    if err != nil {
      return nil, 0, err
    }
    query = query.Where("message.id IN (?)", coneSearchMessageIDs(transaction.WithContext(ctx), cone))
  }
  if filter.PolygonSearch != "" {
    polygon, err := ParsePolygonSearch(filter.PolygonSearch)
    if err != nil {
      return nil, 0, err
    }
    targetIDs, err := targetIDsInPolygon(ctx, transaction, polygon)
    if err != nil {
      return nil, 0, err
    }
    query = query.Where(
      "message.id IN (?)",
      transaction.WithContext(ctx).
        Table("target_messages").
        Select("target_messages.message_id").
        Where("target_messages.target_id IN ?", emptyGuard(targetIDs)),
    )
  }

  var total int64
  if err := query.Count(&total).Error; err != nil {
    return nil, 0, err
  }

  var results []*types.Message
  query = query.Order("message.published DESC")
  if filter.Limit > 0 {
    query = query.Limit(filter.Limit)
  }
  if filter.Offset > 0 {
    query = query.Offset(filter.Offset)
  }
  if err := query.Find(&results).Error; err != nil {
    return nil, 0, err
  }
  return results, total, nil
}

func (mr *messageRepo) DistinctTopics(ctx context.Context, tx *gorm.DB) ([]string, error) {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }

  var topics []string
  if err := transaction.WithContext(ctx).
    Model(&types.Message{}).
    Distinct("topic").
    Order("topic").
    Pluck("topic", &topics).Error; err != nil {
    return nil, err
  }
  return topics, nil
}

func (mr *messageRepo) AddTarget(ctx context.Context, tx *gorm.DB, message *types.Message, target *types.Target) error {
  transaction := tx
  if transaction == nil {
    transaction = mr.db
  }
  return transaction.WithContext(ctx).Model(message).Association("Targets").Append(target)
}

// ConeSearch is a parsed "ra,dec,radius" query, all in decimal degrees.
type ConeSearch struct {
  RA      float64
  Dec     float64
  Radius  float64
}

func ParseConeSearch(value string) (ConeSearch, error) {
  parts := strings.Split(value, ",")
  if len(parts) != 3 {
    return ConeSearch{}, fmt.Errorf("cone_search expects 'ra,dec,radius', got %q", value)
  }
  var out [3]float64
  for i, part := range parts {
    f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
    if err != nil {
      return ConeSearch{}, fmt.Errorf("cone_search value %q does not parse as a float: %w", part, err)
    }
    out[i] = f
  }
  return ConeSearch{RA: out[0], Dec: out[1], Radius: out[2]}, nil
}

// ParsePolygonSearch parses comma-separated pairs of space-delimited
// coordinates, e.g. "10 20, 30 20, 30 40". The polygon is closed
// automatically by repeating the first vertex.
func ParsePolygonSearch(value string) ([][2]float64, error) {
  pairs := strings.Split(value, ",")
  if len(pairs) < 3 {
    return nil, fmt.Errorf("polygon_search expects at least 3 vertices, got %q", value)
  }
  vertices := make([][2]float64, 0, len(pairs)+1)
  for _, pair := range pairs {
    fields := strings.Fields(pair)
    if len(fields) != 2 {
      return nil, fmt.Errorf("polygon_search vertex %q is not 'ra dec'", pair)
    }
    ra, err := strconv.ParseFloat(fields[0], 64)
    if err != nil {
      return nil, fmt.Errorf("polygon_search ra %q does not parse: %w", fields[0], err)
    }
    dec, err := strconv.ParseFloat(fields[1], 64)
    if err != nil {
      return nil, fmt.Errorf("polygon_search dec %q does not parse: %w", fields[1], err)
    }
    vertices = append(vertices, [2]float64{ra, dec})
  }
  vertices = append(vertices, vertices[0])
  return vertices, nil
}

// coneSearchMessageIDs builds a subquery of message ids whose linked targets
// fall within the great-circle distance of the cone center.
func coneSearchMessageIDs(tx *gorm.DB, cone ConeSearch) *gorm.DB {
  return tx.
    Table("target_messages").
    Select("target_messages.message_id").
    Joins("JOIN target ON target.id = target_messages.target_id").
    Where(greatCircleCondition("target"), cone.Dec, cone.Dec, cone.RA, cone.Radius)
}

// greatCircleCondition is the spherical law of cosines as SQL; the LEAST /
// GREATEST clamp keeps acos in domain under floating point error.
func greatCircleCondition(table string) string {
  return fmt.Sprintf(
    "degrees(acos(LEAST(1.0, GREATEST(-1.0, "+
      "sin(radians(%[1]s.dec)) * sin(radians(?)) + "+
      "cos(radians(%[1]s.dec)) * cos(radians(?)) * cos(radians(%[1]s.ra - ?)))))) <= ?",
    table,
  )
}

// targetIDsInPolygon fetches the targets inside the polygon's bounding box
// and keeps the ones inside the polygon proper with a ray-cast test.
func targetIDsInPolygon(ctx context.Context, tx *gorm.DB, polygon [][2]float64) ([]uuid.UUID, error) {
  minRA, maxRA := polygon[0][0], polygon[0][0]
  minDec, maxDec := polygon[0][1], polygon[0][1]
  for _, v := range polygon {
    if v[0] < minRA {
      minRA = v[0]
    }
    if v[0] > maxRA {
      maxRA = v[0]
    }
    if v[1] < minDec {
      minDec = v[1]
    }
    if v[1] > maxDec {
      maxDec = v[1]
    }
  }

  var candidates []*types.Target
  if err := tx.WithContext(ctx).
    Where("ra BETWEEN ? AND ? AND dec BETWEEN ? AND ?", minRA, maxRA, minDec, maxDec).
    Find(&candidates).Error; err != nil {
    return nil, err
  }

  ids := make([]uuid.UUID, 0, len(candidates))
  for _, target := range candidates {
    if PointInPolygon(target.RA, target.Dec, polygon) {
      ids = append(ids, target.ID)
    }
  }
  return ids, nil
}

// PointInPolygon is a standard even-odd ray cast over a closed vertex list.
func PointInPolygon(ra, dec float64, polygon [][2]float64) bool {
  inside := false
  for i := 1; i < len(polygon); i++ {
    x1, y1 := polygon[i-1][0], polygon[i-1][1]
    x2, y2 := polygon[i][0], polygon[i][1]
    if (y1 > dec) != (y2 > dec) {
      atX := (x2-x1)*(dec-y1)/(y2-y1) + x1
      if ra < atX {
        inside = !inside
      }
    }
  }
  return inside
}

// emptyGuard keeps "IN ?" valid when no targets matched; uuid.Nil never
// matches a real row.
func emptyGuard(ids []uuid.UUID) []uuid.UUID {
  if len(ids) == 0 {
    return []uuid.UUID{uuid.Nil}
  }
  return ids
}
