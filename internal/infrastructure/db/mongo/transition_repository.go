package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

const transitionsCollection = "order_transitions"

// TransitionRepository is the audit trail of reconciliation decisions.
type TransitionRepository struct {
	coll *mongo.Collection
}

// NewTransitionRepository creates a TransitionRepository on db.
func NewTransitionRepository(db *mongo.Database) *TransitionRepository {
	return &TransitionRepository{coll: db.Collection(transitionsCollection)}
}

// EnsureIndexes creates the lookup index used by History. Safe to call on every start.
func (r *TransitionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create transition index: %w", err)
	}
	return nil
}

type transitionDoc struct {
	PassID     string    `bson:"pass_id"`
	OrderID    string    `bson:"order_id"`
	From       string    `bson:"from"`
	To         string    `bson:"to"`
	Phase      string    `bson:"phase"`
	Error      string    `bson:"error,omitempty"`
	At         time.Time `bson:"at"`
	RecordedAt time.Time `bson:"recorded_at"`
}

func newTransitionDoc(t domain.Transition, now time.Time) transitionDoc {
	return transitionDoc{
		PassID:     t.PassID,
		OrderID:    t.OrderID,
		From:       string(t.From),
		To:         string(t.To),
		Phase:      string(t.Phase),
		Error:      t.Error,
		At:         t.At.UTC(),
		RecordedAt: now.UTC(),
	}
}

func (d transitionDoc) toDomain() domain.Transition {
	return domain.Transition{
		PassID:  d.PassID,
		OrderID: d.OrderID,
		From:    domain.OrderStatus(d.From),
		To:      domain.OrderStatus(d.To),
		Phase:   domain.Phase(d.Phase),
		Error:   d.Error,
		At:      d.At,
	}
}

// Record inserts one transition, committed or failed.
func (r *TransitionRepository) Record(ctx context.Context, t domain.Transition) error {
	if _, err := r.coll.InsertOne(ctx, newTransitionDoc(t, time.Now())); err != nil {
		return fmt.Errorf("record transition %s: %w", t.OrderID, err)
	}
	return nil
}

// History returns the most recent transitions of an order, newest first.
func (r *TransitionRepository) History(ctx context.Context, orderID string, limit int64) ([]domain.Transition, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().SetSort(bson.D{{Key: "at", Value: -1}}).SetLimit(limit)

	cur, err := r.coll.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("transition history %s: %w", orderID, err)
	}
	defer cur.Close(ctx)

	var docs []transitionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode transition history: %w", err)
	}

	out := make([]domain.Transition, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}
