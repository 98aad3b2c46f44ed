package persistence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/sagaflow/internal/testutil"
)

func TestRedisStoreContract(t *testing.T) {
	addr := testutil.GetRedisAddress(t)

	runStoreContract(t, func(t *testing.T) InstanceStore {
		client := redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { require.NoError(t, client.Close()) })

		// Unique prefix per subtest keeps the shared container clean.
		return NewRedisInstanceStore(client, "sagaflow-test:"+uuid.NewString()+":")
	})
}
