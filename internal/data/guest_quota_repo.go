package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// consumeMaxRetries 并发冲突时的重试次数上限
const consumeMaxRetries = 3

// guestQuotaRepo 游客额度数据访问
type guestQuotaRepo struct {
	data *Data
	log  *log.Helper
}

// NewGuestQuotaRepo 创建游客额度 repo（返回 biz.GuestQuotaRepo 接口）
func NewGuestQuotaRepo(data *Data, logger log.Logger) biz.GuestQuotaRepo {
	return &guestQuotaRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Consume 检查并消耗一次游客额度
// 每条路径都是单条带条件的写入：插入靠主键 insert-if-absent，递增/开新窗
// 以读到的旧值为条件，并发冲突时影响 0 行并重读重试，计数不可能超限
func (r *guestQuotaRepo) Consume(ctx context.Context, sessionID, ip string, limit int, window time.Duration, now time.Time) (*biz.GuestQuotaDecision, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID is required")
	}

	for attempt := 0; attempt < consumeMaxRetries; attempt++ {
		var m model.GuestQuota
		err := r.data.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&m).Error
		notFound := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !notFound {
			return nil, err
		}

		if notFound {
			result := r.data.db.WithContext(ctx).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "session_id"}},
				DoNothing: true,
			}).Create(&model.GuestQuota{
				SessionID:     sessionID,
				Count:         1,
				WindowStartAt: now,
				LastIP:        ip,
			})
			if result.Error != nil {
				return nil, result.Error
			}
			if result.RowsAffected == 0 {
				// 并发创建被主键挡下，重读
				continue
			}
			return &biz.GuestQuotaDecision{
				Allowed:   true,
				Remaining: limit - 1,
				ResetsAt:  now.Add(window),
			}, nil
		}

		// 超过窗口长度视为新窗口
		if now.Sub(m.WindowStartAt) >= window {
			result := r.data.db.WithContext(ctx).Model(&model.GuestQuota{}).
				Where("session_id = ? AND window_start_at = ?", sessionID, m.WindowStartAt).
				Updates(map[string]interface{}{
					"count":           1,
					"window_start_at": now,
					"last_ip":         ip,
				})
			if result.Error != nil {
				return nil, result.Error
			}
			if result.RowsAffected == 0 {
				continue
			}
			return &biz.GuestQuotaDecision{
				Allowed:   true,
				Remaining: limit - 1,
				ResetsAt:  now.Add(window),
			}, nil
		}

		// 额度用尽：不递增计数
		if m.Count >= limit {
			return &biz.GuestQuotaDecision{
				Allowed:   false,
				Remaining: 0,
				ResetsAt:  m.WindowStartAt.Add(window),
			}, nil
		}

		result := r.data.db.WithContext(ctx).Model(&model.GuestQuota{}).
			Where("session_id = ? AND count = ?", sessionID, m.Count).
			Updates(map[string]interface{}{
				"count":   m.Count + 1,
				"last_ip": ip,
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}
		return &biz.GuestQuotaDecision{
			Allowed:   true,
			Remaining: limit - (m.Count + 1),
			ResetsAt:  m.WindowStartAt.Add(window),
		}, nil
	}

	return nil, fmt.Errorf("guest quota consume retries exhausted: session_id=%s", sessionID)
}

// GetQuota 获取游客额度记录，不存在返回 nil
func (r *guestQuotaRepo) GetQuota(ctx context.Context, sessionID string) (*biz.GuestQuota, error) {
	var m model.GuestQuota
	if err := r.data.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &biz.GuestQuota{
		SessionID:     m.SessionID,
		Count:         m.Count,
		WindowStartAt: m.WindowStartAt,
		LastIP:        m.LastIP,
	}, nil
}
