package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"vectorflow-go/pkg/log"
)

// RDB 是全局的 Redis 客户端，承载登出 token 黑名单。
var RDB *redis.Client

// InitRedis 建立 Redis 连接并做一次连通性检查。
func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := RDB.Ping(context.Background()).Err(); err != nil {
		log.Fatal("连接 Redis 失败", err)
	}

	log.Info("Redis 连接成功")
}
