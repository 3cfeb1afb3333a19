package offlinequeue

import (
	"context"
	"sync"

	"github.com/navetta/navetta/pkg/locationstore"
	"github.com/navetta/navetta/pkg/model"
	"github.com/rs/zerolog/log"
)

// Queue buffers location records whose persist attempt failed, usually
// because the client was offline. It is volatile: records do not
// survive a process restart. Delivery is at least once and the queue
// never deduplicates; a write that succeeded server side without the
// client observing it will be retried.
type Queue struct {
	store locationstore.Store

	mutex   sync.Mutex
	records []model.LocationRecord

	flushMutex sync.Mutex
}

func NewQueue(store locationstore.Store) *Queue {
	return &Queue{
		store: store,
	}
}

// Enqueue appends a record for a later flush.
func (q *Queue) Enqueue(record model.LocationRecord) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	q.records = append(q.records, record)

	log.Debug().Str("driver", record.DriverID).Int("pending", len(q.records)).Msg("Location record queued for retry")
}

// Len reports how many records are awaiting upload.
func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.records)
}

// Flush attempts every pending record in order. A record that fails is
// put back at the tail rather than aborting the rest. Flushes are
// serialised; a second caller waits for the first to finish.
func (q *Queue) Flush(ctx context.Context) {
	q.flushMutex.Lock()
	defer q.flushMutex.Unlock()

	q.mutex.Lock()
	pending := q.records
	q.records = nil
	q.mutex.Unlock()

	if len(pending) == 0 {
		return
	}

	log.Info().Int("pending", len(pending)).Msg("Flushing offline location queue")

	for _, record := range pending {
		if err := q.store.Insert(ctx, record); err != nil {
			log.Error().Err(err).Str("driver", record.DriverID).Msg("Failed to flush location record")

			q.mutex.Lock()
			q.records = append(q.records, record)
			q.mutex.Unlock()
		}
	}
}
