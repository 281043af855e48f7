package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"FestivalSupport/logger"
	redis2 "FestivalSupport/service/storage/redis"
)

// Presence mirror: reflects identity online/offline edges into redis so
// dashboards outside the gateway process can read liveness. The gateway
// never reads these keys back; routing decisions stay on in-process state.
//
// key: support:presence:<identityId>  value: scope id  TTL bounds staleness
// if the process dies without running the offline path.

const presenceTTL = 2 * time.Minute

func presenceKey(identityID string) string { return "support:presence:" + identityID }

// Mirror satisfies the gateway's PresenceMirror interface.
type Mirror struct{}

func NewMirror() *Mirror { return &Mirror{} }

func (m *Mirror) Online(identityID, scopeID string) {
	rdb := redis2.Client()
	if rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Set(ctx, presenceKey(identityID), scopeID, presenceTTL).Err(); err != nil {
		logger.Warnf("[presence-mirror] online %s: %v", identityID, err)
	}
}

func (m *Mirror) Offline(identityID string) {
	rdb := redis2.Client()
	if rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Del(ctx, presenceKey(identityID)).Err(); err != nil {
		logger.Warnf("[presence-mirror] offline %s: %v", identityID, err)
	}
}

// Lookup reports whether an identity currently has a mirrored presence key.
// Exposed for ops tooling and tests; gateway code does not call it.
func Lookup(identityID string) (scopeID string, online bool, err error) {
	rdb := redis2.Client()
	if rdb == nil {
		return "", false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	val, err := rdb.Get(ctx, presenceKey(identityID)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
