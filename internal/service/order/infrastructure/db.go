package infrastructure

import (
	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenMySQL 打开连接。TranslateError 把唯一键冲突翻译为 gorm.ErrDuplicatedKey。
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	return db, nil
}

// OpenSQLite 用于测试和本地演示，name 相同的连接共享同一个内存库。
func OpenSQLite(name string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// OpenSQLiteFile 打开文件库，允许多个连接并发。写事务以 BEGIN IMMEDIATE 开始，
// 抢不到写锁的连接最多等待 busy_timeout。
func OpenSQLiteFile(path string) (*gorm.DB, error) {
	dsn := "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite file")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite file")
	}
	sqlDB.SetMaxOpenConns(4)
	return db, nil
}

// AutoMigrate 建立本服务拥有的表。coupons 属于营销系统，只在测试和本地环境中创建。
func AutoMigrate(db *gorm.DB, withExternal bool) error {
	models := []any{
		&OrderModel{}, &OrderItemModel{}, &ShipmentModel{}, &OrderStatusHistoryModel{},
		&CancellationRequestModel{}, &ReturnModel{},
	}
	if withExternal {
		models = append(models, &CouponModel{})
	}
	return errors.Wrap(db.AutoMigrate(models...), "migrate order tables")
}
