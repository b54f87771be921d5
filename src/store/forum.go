package store

import (
	"context"
	"fmt"

	"github.com/stake-plus/netstate-gov/src/events"
	"github.com/stake-plus/netstate-gov/src/shared/gov"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ForumRepository interface {
	List(ctx context.Context, page Page) ([]gov.ForumPost, error)
	Create(ctx context.Context, p *gov.ForumPost) error
	Like(ctx context.Context, id string) (*gov.ForumPost, error)
	Count(ctx context.Context) (int64, error)
}

type forumRepository struct {
	repository
}

func NewForumRepository(db *gorm.DB, pub events.Publisher, log *zap.SugaredLogger) ForumRepository {
	return &forumRepository{repository: repository{db: db, pub: pub, log: log}}
}

func (r *forumRepository) List(ctx context.Context, page Page) ([]gov.ForumPost, error) {
	posts := make([]gov.ForumPost, 0)
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if err := page.apply(q).Find(&posts).Error; err != nil {
		return nil, storageErr("list forum posts", err)
	}
	return posts, nil
}

func (r *forumRepository) Create(ctx context.Context, p *gov.ForumPost) error {
	if p.ID == "" {
		p.ID = newID()
	}
	p.AuthorAddress = gov.NormalizeAddress(p.AuthorAddress)
	if p.Category == "" {
		p.Category = "General"
	}
	if p.Tags == nil {
		p.Tags = gov.StringSlice{}
	}

	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return storageErr("create forum post", err)
	}
	r.publish(ctx, events.TableForumPosts, events.Insert, p.ID, p)
	return nil
}

func (r *forumRepository) Like(ctx context.Context, id string) (*gov.ForumPost, error) {
	var post gov.ForumPost
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&gov.ForumPost{}).Where("id = ?", id).UpdateColumn("likes", gorm.Expr("likes + 1"))
		if res.Error != nil {
			return storageErr("like forum post", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: forum post %s", gov.ErrNotFound, id)
		}
		if err := tx.Where("id = ?", id).First(&post).Error; err != nil {
			return lookupErr("forum post", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.publish(ctx, events.TableForumPosts, events.Update, post.ID, post)
	return &post, nil
}

func (r *forumRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&gov.ForumPost{}).Count(&n).Error; err != nil {
		return 0, storageErr("count forum posts", err)
	}
	return n, nil
}
