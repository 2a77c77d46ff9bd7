package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/laundrydesk/opsync/internal/core/domain"
)

func TestTransitionDoc_FieldNames(t *testing.T) {
	at := time.Date(2026, 5, 10, 9, 0, 0, 0, time.FixedZone("CST", -6*3600))
	doc := newTransitionDoc(domain.Transition{
		PassID:  "p1",
		OrderID: "o1",
		From:    domain.OrderProcessing,
		To:      domain.OrderCompleted,
		Phase:   domain.PhaseCommitted,
		At:      at,
	}, at)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))

	assert.Equal(t, "o1", m["order_id"])
	assert.Equal(t, "completed", m["to"])
	assert.Contains(t, m, "recorded_at")
	assert.NotContains(t, m, "error", "a committed transition carries no error")
	assert.Equal(t, time.UTC, doc.At.Location())
}

func TestTransitionDoc_ToDomain(t *testing.T) {
	doc := transitionDoc{
		PassID: "p2", OrderID: "o9", From: "completed", To: "processing",
		Phase: "failed", Error: "409 conflict",
	}

	tr := doc.toDomain()
	assert.Equal(t, domain.OrderCompleted, tr.From)
	assert.Equal(t, domain.OrderProcessing, tr.To)
	assert.Equal(t, domain.PhaseFailed, tr.Phase)
	assert.Equal(t, "409 conflict", tr.Error)
}
