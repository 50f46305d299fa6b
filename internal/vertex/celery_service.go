package vertex

import (
	"sync"
	"time"

	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/gocelery/gocelery"
	"github.com/gomodule/redigo/redis"

	"github.com/silent-stones/vertex-universal-orchestrator/conf"
)

// deployWorkerCount bounds how many experiment deployments run at once.
const deployWorkerCount = 10

var (
	redisPool     *redis.Pool
	redisPoolOnce sync.Once

	celeryService *CeleryService
	celeryOnce    sync.Once
)

// CeleryService runs experiment deployments as background tasks in API mode,
// with redis as both broker and result backend.
type CeleryService struct {
	cli *gocelery.CeleryClient
}

func getRedisPool() *redis.Pool {
	redisPoolOnce.Do(func() {
		url := conf.GetConfig().API.RedisUrl
		password := conf.GetConfig().API.RedisPassword

		redisPool = &redis.Pool{
			MaxIdle:     5,
			MaxActive:   0,
			IdleTimeout: 240 * time.Second,
			Dial: func() (redis.Conn, error) {
				if password != "" {
					return redis.DialURL(url, redis.DialPassword(password))
				}
				return redis.DialURL(url)
			},
			TestOnBorrow: func(c redis.Conn, t time.Time) error {
				_, err := c.Do("PING")
				return err
			},
		}
	})
	return redisPool
}

// GetRedisClient hands out one connection from the shared pool; callers must
// close it.
func GetRedisClient() redis.Conn {
	return getRedisPool().Get()
}

func NewCeleryService() *CeleryService {
	celeryOnce.Do(func() {
		pool := getRedisPool()
		celeryClient, err := gocelery.NewCeleryClient(
			gocelery.NewRedisBroker(pool),
			gocelery.NewRedisBackend(pool),
			deployWorkerCount)
		if err != nil {
			logs.GetLogger().Fatalf("Failed init celery service, error: %+v", err)
		}
		celeryService = &CeleryService{cli: celeryClient}
	})
	return celeryService
}

func (s *CeleryService) RegisterTask(taskName string, task interface{}) {
	s.cli.Register(taskName, task)
}

func (s *CeleryService) DelayTask(taskName string, params ...interface{}) (*gocelery.AsyncResult, error) {
	return s.cli.Delay(taskName, params...)
}

func (s *CeleryService) Start() {
	s.cli.StartWorker()
}

func (s *CeleryService) Stop() {
	s.cli.StopWorker()
}
