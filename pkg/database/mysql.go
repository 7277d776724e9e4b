// Package database 负责初始化 MySQL 与 Redis 的全局客户端。
package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"vectorflow-go/pkg/log"
)

// DB 是全局的 gorm 连接，documents 与 users 表的仓储都基于它构建。
var DB *gorm.DB

// InitMySQL 建立 MySQL 连接并配置连接池。
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("连接 MySQL 失败", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("获取底层 sql.DB 失败", err)
	}

	// 上传与状态轮询的请求都很短，连接池不需要太大
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("MySQL 连接成功")
}
