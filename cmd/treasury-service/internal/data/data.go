package data

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Data 数据访问层
type Data struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewData 创建Data实例
func NewData(db *gorm.DB, redis *redis.Client, logger log.Logger) (*Data, func(), error) {
	cleanup := func() {
		helper := log.NewHelper(logger)
		helper.Info("closing the data resources")

		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}
	return &Data{
		db:    db,
		redis: redis,
	}, cleanup, nil
}

// PingDB 探测数据库连通性
func (d *Data) PingDB(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// PingRedis 探测Redis连通性
func (d *Data) PingRedis(ctx context.Context) error {
	return d.redis.Ping(ctx).Err()
}
