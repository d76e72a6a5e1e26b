package services

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/cache"
	"github.com/Kariqs/readpage-api/metrics"
	"github.com/Kariqs/readpage-api/models"
	"github.com/Kariqs/readpage-api/storage"
	"github.com/Kariqs/readpage-api/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const coverFolder = "books"

// BookFields holds the writable fields of a book. Nil means "leave as is".
type BookFields struct {
	Title       *string
	Author      *string
	Description *string
	Category    *string
	Price       *decimal.Decimal
	Stock       *int
}

type BookQuery struct {
	Page     int
	Limit    int
	Search   string
	Category string
}

type BookService struct {
	db      *gorm.DB
	images  storage.ImageStore
	cache   cache.BookCache
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewBookService(db *gorm.DB, images storage.ImageStore, bookCache cache.BookCache, m *metrics.Metrics, logger *zap.Logger) *BookService {
	if bookCache == nil {
		bookCache = cache.NoopBookCache{}
	}
	return &BookService{db: db, images: images, cache: bookCache, metrics: m, logger: logger}
}

func (s *BookService) List(ctx context.Context, q BookQuery) ([]models.Book, utils.Pagination, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if search := strings.TrimSpace(q.Search); search != "" {
			like := "%" + search + "%"
			db = db.Where("title LIKE ? OR author LIKE ?", like, like)
		}
		if category := strings.TrimSpace(q.Category); category != "" {
			db = db.Where("category = ?", category)
		}
		return db
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Book{}).Scopes(filter).Count(&count).Error; err != nil {
		return nil, utils.Pagination{}, apperrors.Internal("unable to count books", err)
	}

	var books []models.Book
	if err := s.db.WithContext(ctx).
		Scopes(filter).
		Order("created_at DESC, id DESC").
		Limit(q.Limit).
		Offset(utils.Offset(q.Page, q.Limit)).
		Find(&books).Error; err != nil {
		return nil, utils.Pagination{}, apperrors.Internal("unable to fetch books", err)
	}
	return books, utils.NewPagination(count, q.Page, q.Limit), nil
}

// Get reads through the book cache.
func (s *BookService) Get(ctx context.Context, id uint) (*models.Book, error) {
	if book, ok := s.cache.Get(ctx, id); ok {
		s.metrics.RecordCacheResult(true)
		return book, nil
	}
	s.metrics.RecordCacheResult(false)

	book, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, book)
	return book, nil
}

func (s *BookService) Create(ctx context.Context, fields BookFields, cover *multipart.FileHeader) (*models.Book, error) {
	if fields.Title == nil || strings.TrimSpace(*fields.Title) == "" {
		return nil, apperrors.Validation("title is required")
	}
	if fields.Author == nil || strings.TrimSpace(*fields.Author) == "" {
		return nil, apperrors.Validation("author is required")
	}
	if fields.Price == nil {
		return nil, apperrors.Validation("price is required")
	}

	book := models.Book{Category: "General"}
	if err := applyBookFields(&book, fields); err != nil {
		return nil, err
	}

	stored, err := s.saveCover(ctx, cover)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		book.CoverImage = datatypes.NewJSONType(*stored)
	}

	if err := s.db.WithContext(ctx).Create(&book).Error; err != nil {
		s.discardCover(ctx, stored)
		return nil, apperrors.Internal("failed to create book", err)
	}

	s.logger.Info("Book created", zap.Uint("book_id", book.ID), zap.String("title", book.Title))
	return &book, nil
}

// Update writes only the fields that were sent. The row is re-read under a
// lock so a concurrent checkout's stock decrement is never overwritten.
func (s *BookService) Update(ctx context.Context, id uint, fields BookFields, cover *multipart.FileHeader) (*models.Book, error) {
	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyBookFields(current, fields); err != nil {
		return nil, err
	}

	stored, err := s.saveCover(ctx, cover)
	if err != nil {
		return nil, err
	}

	var book models.Book
	var oldCover models.ImageRef
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&book, id).Error; err != nil {
			return err
		}
		oldCover = book.CoverImage.Data()
		if err := applyBookFields(&book, fields); err != nil {
			return err
		}

		columns := bookColumns(fields)
		if stored != nil {
			book.CoverImage = datatypes.NewJSONType(*stored)
			columns = append(columns, "cover_image")
		}
		if len(columns) == 0 {
			return nil
		}
		return tx.Model(&book).Select(columns).Updates(&book).Error
	})
	if err != nil {
		s.discardCover(ctx, stored)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("book not found")
		}
		return nil, wrapInternal(err, "failed to update book")
	}
	s.cache.Invalidate(ctx, id)

	if stored != nil && !oldCover.IsZero() {
		s.discardCover(ctx, &oldCover)
	}
	return &book, nil
}

// bookColumns lists the columns an update touches.
func bookColumns(f BookFields) []string {
	var columns []string
	if f.Title != nil {
		columns = append(columns, "title")
	}
	if f.Author != nil {
		columns = append(columns, "author")
	}
	if f.Description != nil {
		columns = append(columns, "description")
	}
	if f.Category != nil && strings.TrimSpace(*f.Category) != "" {
		columns = append(columns, "category")
	}
	if f.Price != nil {
		columns = append(columns, "price")
	}
	if f.Stock != nil {
		columns = append(columns, "stock")
	}
	return columns
}

// Delete soft-deletes the book and drops it from every cart. Past orders
// keep pointing at it.
func (s *BookService) Delete(ctx context.Context, id uint) error {
	book, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("book_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(book).Error
	})
	if err != nil {
		return apperrors.Internal("failed to delete book", err)
	}
	s.cache.Invalidate(ctx, id)

	if cover := book.CoverImage.Data(); !cover.IsZero() {
		s.discardCover(ctx, &cover)
	}
	return nil
}

func (s *BookService) find(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	err := s.db.WithContext(ctx).First(&book, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("book not found")
	}
	if err != nil {
		return nil, apperrors.Internal("unable to retrieve book", err)
	}
	return &book, nil
}

func (s *BookService) saveCover(ctx context.Context, cover *multipart.FileHeader) (*models.ImageRef, error) {
	if cover == nil {
		return nil, nil
	}
	if s.images == nil {
		return nil, apperrors.Internal("image storage is not configured", nil)
	}
	ref, err := s.images.Save(ctx, cover, coverFolder)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// discardCover removes a stored image best-effort.
func (s *BookService) discardCover(ctx context.Context, ref *models.ImageRef) {
	if ref == nil || s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, *ref); err != nil {
		s.logger.Warn("Failed to delete cover image", zap.String("path", ref.Path), zap.Error(err))
	}
}

func applyBookFields(book *models.Book, f BookFields) error {
	if f.Title != nil {
		book.Title = strings.TrimSpace(*f.Title)
	}
	if f.Author != nil {
		book.Author = strings.TrimSpace(*f.Author)
	}
	if f.Description != nil {
		book.Description = *f.Description
	}
	if f.Category != nil && strings.TrimSpace(*f.Category) != "" {
		book.Category = strings.TrimSpace(*f.Category)
	}
	if f.Price != nil {
		if f.Price.IsNegative() {
			return apperrors.Validation("price cannot be negative")
		}
		book.Price = *f.Price
	}
	if f.Stock != nil {
		if *f.Stock < 0 {
			return apperrors.Validation("stock cannot be negative")
		}
		book.Stock = *f.Stock
	}
	if book.Title == "" || book.Author == "" {
		return apperrors.Validation("title and author cannot be empty")
	}
	return nil
}
