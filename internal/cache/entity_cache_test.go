package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/routemate/bus-booking-backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*EntityCache, redismock.ClientMock) {
	t.Helper()

	client, mock := redismock.NewClientMock()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return NewEntityCache(client, 15*time.Minute, logger), mock
}

func TestEntityCacheGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Hit", func(t *testing.T) {
		c, mock := newTestCache(t)

		route := models.Route{ID: "route-1", Origin: "Colombo", Destination: "Kandy"}
		data, err := json.Marshal(route)
		require.NoError(t, err)

		mock.ExpectGet(Key("route", "route-1")).SetVal(string(data))

		var got models.Route
		ok := c.Get(ctx, Key("route", "route-1"), &got)
		assert.True(t, ok)
		assert.Equal(t, "Kandy", got.Destination)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Miss", func(t *testing.T) {
		c, mock := newTestCache(t)

		mock.ExpectGet(Key("route", "missing")).RedisNil()

		var got models.Route
		assert.False(t, c.Get(ctx, Key("route", "missing"), &got))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Corrupt Entry Dropped", func(t *testing.T) {
		c, mock := newTestCache(t)

		key := Key("route", "bad")
		mock.ExpectGet(key).SetVal("not-json")
		mock.ExpectDel(key).SetVal(1)

		var got models.Route
		assert.False(t, c.Get(ctx, key, &got))

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEntityCacheSetAndInvalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("Set Uses TTL", func(t *testing.T) {
		c, mock := newTestCache(t)

		schedule := models.Schedule{ID: "sched-1", TotalSeats: 40, AvailableSeats: 40}
		data, err := json.Marshal(schedule)
		require.NoError(t, err)

		mock.ExpectSet(Key("schedule", "sched-1"), data, 15*time.Minute).SetVal("OK")

		c.Set(ctx, Key("schedule", "sched-1"), schedule)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Invalidate Removes Keys", func(t *testing.T) {
		c, mock := newTestCache(t)

		mock.ExpectDel(Key("schedule", "sched-1")).SetVal(1)

		c.Invalidate(ctx, Key("schedule", "sched-1"))

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Invalidate Without Keys Is Noop", func(t *testing.T) {
		c, mock := newTestCache(t)

		c.Invalidate(ctx)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
