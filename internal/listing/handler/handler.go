package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thriftkids/marketplace/internal/listing"
	"github.com/thriftkids/marketplace/internal/listing/service"
	"github.com/thriftkids/marketplace/pkg/logger"
)

// openImage reads the spooled upload; replaced in tests.
var openImage = func(fh *multipart.FileHeader) (multipart.File, error) {
	return fh.Open()
}

// Workflow is the part of the listing service the HTTP layer needs.
type Workflow interface {
	Create(ctx context.Context, in service.CreateInput) (*listing.Listing, error)
	List(ctx context.Context) []*listing.Listing
	ProbeModel(ctx context.Context) (string, error)
}

// RegisterListingRoutes mounts the /api routes on r.
func RegisterListingRoutes(r gin.IRouter, wf Workflow) {
	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api.GET("/listings", func(c *gin.Context) {
		c.JSON(http.StatusOK, wf.List(c.Request.Context()))
	})

	api.POST("/listings", func(c *gin.Context) {
		in := service.CreateInput{
			Title:       c.PostForm("title"),
			Size:        c.PostForm("size"),
			AgeGroup:    c.PostForm("age_group"),
			Condition:   c.PostForm("condition"),
			Notes:       c.PostForm("notes"),
			Description: c.PostForm("description"),
		}
		// a missing file is reported by the workflow as a validation error
		if fh, err := c.FormFile("image"); err == nil {
			f, err := openImage(fh)
			switch {
			case err != nil && in.Title != "":
				logger.Errorf("open uploaded image %q: %v", fh.Filename, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": service.ErrUpload.Error()})
				return
			case err == nil:
				defer f.Close()
				in.Image = &service.Image{
					Filename:    fh.Filename,
					ContentType: fh.Header.Get("Content-Type"),
					Size:        fh.Size,
					Body:        f,
				}
			}
		}

		l, err := wf.Create(c.Request.Context(), in)
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrValidation.Error()})
			return
		case errors.Is(err, service.ErrUpload):
			c.JSON(http.StatusInternalServerError, gin.H{"error": service.ErrUpload.Error()})
			return
		case err != nil:
			logger.Errorf("create listing: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusCreated, l)
	})

	api.GET("/test-ai", func(c *gin.Context) {
		text, err := wf.ProbeModel(c.Request.Context())
		if errors.Is(err, service.ErrModelNotConfigured) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "response": text})
	})
}
