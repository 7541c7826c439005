package controller

import (
	"io"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"doc-chat-be/internal/apperr"
	"doc-chat-be/internal/pkg/serverutils"
	"doc-chat-be/internal/service"
)

type IUploadController interface {
	RegisterRoutes(r fiber.Router)
	Upload(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type uploadController struct {
	documentService service.IDocumentService
}

func NewUploadController(documentService service.IDocumentService) IUploadController {
	return &uploadController{
		documentService: documentService,
	}
}

func (c *uploadController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/upload/v1")
	h.Post("files", c.Upload)
	h.Get("files", c.List)
	h.Delete("files/:filename", c.Delete)
}

func (c *uploadController) Upload(ctx *fiber.Ctx) error {
	sessionID, err := RequireSessionID(ctx)
	if err != nil {
		return err
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return apperr.New(apperr.ErrInvalidQuery, "multipart field 'file' is required")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return apperr.Wrap(apperr.ErrInvalidQuery, "cannot open uploaded file", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return apperr.Wrap(apperr.ErrInvalidQuery, "cannot read uploaded file", err)
	}

	res, err := c.documentService.Upload(ctx.Context(), sessionID, fileHeader.Filename, data)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("File uploaded", res))
}

func (c *uploadController) List(ctx *fiber.Ctx) error {
	sessionID, err := RequireSessionID(ctx)
	if err != nil {
		return err
	}

	res, err := c.documentService.ListFiles(ctx.Context(), sessionID)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session files", res))
}

func (c *uploadController) Delete(ctx *fiber.Ctx) error {
	sessionID, err := RequireSessionID(ctx)
	if err != nil {
		return err
	}

	filename, err := fiberParamFilename(ctx)
	if err != nil {
		return err
	}

	res, err := c.documentService.DeleteFile(ctx.Context(), sessionID, filename)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("File deleted", res))
}

func fiberParamFilename(ctx *fiber.Ctx) (string, error) {
	filename, err := url.PathUnescape(ctx.Params("filename"))
	if err != nil || filename == "" {
		return "", apperr.New(apperr.ErrInvalidQuery, "invalid filename parameter")
	}
	return filename, nil
}
