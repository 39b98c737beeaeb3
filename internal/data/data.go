package data

import (
	"fmt"
	"time"

	"credit-service/internal/conf"

	"github.com/glebarez/sqlite"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	goredis "github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/google/wire"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewRedsync,
	NewData,
	NewCreditRepo,
	NewGuestQuotaRepo,
	NewPromotionRepo,
	NewCheckoutRepo,
	NewPaymentProviderClient,
)

// Data 数据层结构体
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewDB 创建数据库连接
// driver 支持 mysql（线上）与 sqlite（本地/开发）
func NewDB(c *conf.Bootstrap) (*gorm.DB, error) {
	if c.Data == nil || c.Data.Database == nil {
		return nil, fmt.Errorf("database config is nil")
	}

	var dial gorm.Dialector
	switch c.Data.Database.Driver {
	case "sqlite":
		dial = sqlite.Open(c.Data.Database.Source)
	default:
		dial = mysql.Open(c.Data.Database.Source)
	}

	db, err := gorm.Open(dial, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewRedis 创建 Redis 连接
func NewRedis(c *conf.Bootstrap) (*redis.Client, error) {
	if c.Data == nil || c.Data.Redis == nil {
		return nil, fmt.Errorf("redis config is nil")
	}

	var readTimeout, writeTimeout time.Duration
	readTimeout = c.Data.Redis.ReadTimeout.AsDuration()
	writeTimeout = c.Data.Redis.WriteTimeout.AsDuration()

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Data.Redis.Addr,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// 测试连接
	if err := rdb.Ping(rdb.Context()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewRedsync 创建 Redis 分布式锁工厂
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	return redsync.New(goredis.NewPool(rdb))
}

// NewData 创建数据层实例
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
		if err := rdb.Close(); err != nil {
			log.NewHelper(logger).Errorf("failed to close redis: %v", err)
		}
	}

	return &Data{
		db:  db,
		rdb: rdb,
	}, cleanup, nil
}
