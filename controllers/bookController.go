package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Kariqs/readpage-api/apperrors"
	"github.com/Kariqs/readpage-api/services"
	"github.com/Kariqs/readpage-api/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BookController struct {
	books  *services.BookService
	logger *zap.Logger
}

func NewBookController(books *services.BookService, logger *zap.Logger) *BookController {
	return &BookController{books: books, logger: logger}
}

func (c *BookController) GetBooks(ctx *gin.Context) {
	page, limit := utils.ParsePage(ctx.Query("page"), ctx.Query("limit"), 12, 100)

	books, pagination, err := c.books.List(ctx.Request.Context(), services.BookQuery{
		Page:     page,
		Limit:    limit,
		Search:   ctx.Query("search"),
		Category: ctx.Query("category"),
	})
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"books":    books,
		"metadata": pagination,
	})
}

func (c *BookController) GetBook(ctx *gin.Context) {
	id, err := parseID(ctx, "id")
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	book, err := c.books.Get(ctx.Request.Context(), id)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, book)
}

// CreateBook takes a multipart form with a required coverImage file.
func (c *BookController) CreateBook(ctx *gin.Context) {
	fields, err := bookFieldsFromForm(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	cover, err := optionalFile(ctx, "coverImage")
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	if cover == nil {
		respondWithError(ctx, c.logger, apperrors.Validation("Cover image is required"))
		return
	}

	book, err := c.books.Create(ctx.Request.Context(), fields, cover)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusCreated, book)
}

func (c *BookController) UpdateBook(ctx *gin.Context) {
	id, err := parseID(ctx, "id")
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	fields, err := bookFieldsFromForm(ctx)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	cover, err := optionalFile(ctx, "coverImage")
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	book, err := c.books.Update(ctx.Request.Context(), id, fields, cover)
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	ctx.JSON(http.StatusOK, book)
}

func (c *BookController) DeleteBook(ctx *gin.Context) {
	id, err := parseID(ctx, "id")
	if err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}

	if err := c.books.Delete(ctx.Request.Context(), id); err != nil {
		respondWithError(ctx, c.logger, err)
		return
	}
	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": "Book deleted successfully"})
}

// bookFieldsFromForm reads only the fields present in the form, so an
// update leaves the rest untouched.
func bookFieldsFromForm(ctx *gin.Context) (services.BookFields, error) {
	var fields services.BookFields
	text := func(key string) *string {
		if value, ok := ctx.GetPostForm(key); ok {
			return &value
		}
		return nil
	}

	fields.Title = text("title")
	fields.Author = text("author")
	fields.Description = text("description")
	fields.Category = text("category")

	if raw := text("price"); raw != nil {
		price, err := decimal.NewFromString(strings.TrimSpace(*raw))
		if err != nil {
			return fields, apperrors.Validation("price must be a number")
		}
		fields.Price = &price
	}
	if raw := text("stock"); raw != nil && strings.TrimSpace(*raw) != "" {
		stock, err := strconv.Atoi(strings.TrimSpace(*raw))
		if err != nil {
			return fields, apperrors.Validation("stock must be a whole number")
		}
		fields.Stock = &stock
	}
	return fields, nil
}
