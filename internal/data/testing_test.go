package data

import (
	"io"
	"path/filepath"
	"testing"

	"credit-service/internal/data/model"

	"github.com/glebarez/sqlite"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestData(t *testing.T, dsn string) *Data {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.CreditAccount{},
		&model.CreditTransaction{},
		&model.GuestQuota{},
		&model.DiscountCode{},
		&model.DiscountRedemption{},
		&model.StoreOrder{},
	))
	return &Data{db: db}
}

// newTestData 内存 sqlite，无 Redis（缓存与分布式锁路径对 nil 客户端自动退化）
func newTestData(t *testing.T) *Data {
	return openTestData(t, ":memory:")
}

// newTestDataFile 文件 sqlite，供并发测试使用；写事务靠 busy_timeout 排队
func newTestDataFile(t *testing.T) *Data {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "credit.db") +
		"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	return openTestData(t, dsn)
}

func testLogger() log.Logger {
	return log.NewStdLogger(io.Discard)
}
