// internal/pkg/database/mysql.go
package database

import (
	"context"
	"time"

	"atlas/internal/pkg/config"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrTxTimeout 表示事务超出了执行预算被回滚，调用方可以重试。
var ErrTxTimeout = errors.New("transaction exceeded its execution budget")

// Open 建立 MySQL 连接池。
func Open(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(gormmysql.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "obtain sql.DB")
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// InTx 在一个带执行预算的事务中运行 fn。
// 预算耗尽时事务整体回滚，错误被标记为 ErrTxTimeout 以便调用方识别为可重试失败。
// 库存分配这类重事务应传入比普通状态流转更长的预算。
func InTx(ctx context.Context, db *gorm.DB, budget time.Duration, fn func(ctx context.Context, tx *gorm.DB) error) error {
	txCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	err := db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		return fn(txCtx, tx)
	})
	if err != nil {
		if txCtx.Err() == context.DeadlineExceeded {
			return errors.Wrap(ErrTxTimeout, err.Error())
		}
		return err
	}
	return nil
}

// IsDuplicateEntry 判断错误是否为 MySQL 唯一键冲突(1062)。
// 用于把底层驱动错误翻译成"标题重复"这类业务错误。
func IsDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}
