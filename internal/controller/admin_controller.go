package controller

import (
	"strconv"

	"rag-chatbot-be/internal/dto"
	"rag-chatbot-be/internal/pkg/apperror"
	"rag-chatbot-be/internal/pkg/serverutils"
	"rag-chatbot-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)

	// Documents
	ListDocuments(ctx *fiber.Ctx) error
	DeleteDocument(ctx *fiber.Ctx) error
	PurgeIndex(ctx *fiber.Ctx) error

	// System logs
	GetLogs(ctx *fiber.Ctx) error
	GetLogDetail(ctx *fiber.Ctx) error
}

type adminController struct {
	service service.IAdminService
}

func NewAdminController(service service.IAdminService) IAdminController {
	return &adminController{service: service}
}

// RegisterRoutes expects r to already carry the JWT middleware.
func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin", serverutils.AdminOnly)

	h.Get("/documents", c.ListDocuments)
	h.Delete("/documents/:id", c.DeleteDocument)
	h.Delete("/index/documents/:id", c.PurgeIndex)

	h.Get("/logs", c.GetLogs)
	h.Get("/logs/:id", c.GetLogDetail)
}

func (c *adminController) ListDocuments(ctx *fiber.Ctx) error {
	page, _ := strconv.Atoi(ctx.Query("page", "1"))
	limit, _ := strconv.Atoi(ctx.Query("limit", "20"))
	filter := dto.AdminDocumentFilter{
		IncludeInactive: ctx.QueryBool("include_inactive", false),
		Page:            page,
		Limit:           limit,
	}
	if raw := ctx.Query("user_id"); raw != "" {
		userId, err := uuid.Parse(raw)
		if err != nil {
			return apperror.Validation("Validation failed", map[string]string{
				"user_id": "Must be a valid UUID.",
			})
		}
		filter.UserId = &userId
	}

	res, err := c.service.ListDocuments(ctx.UserContext(), filter)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get documents", res))
}

func (c *adminController) DeleteDocument(ctx *fiber.Ctx) error {
	adminId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	documentId, err := documentIdParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.DeleteDocument(ctx.UserContext(), adminId, documentId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Document deleted", res))
}

func (c *adminController) PurgeIndex(ctx *fiber.Ctx) error {
	documentId, err := documentIdParam(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.PurgeIndex(ctx.UserContext(), documentId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Index entries purged", res))
}

func (c *adminController) GetLogs(ctx *fiber.Ctx) error {
	page, _ := strconv.Atoi(ctx.Query("page", "1"))
	limit, _ := strconv.Atoi(ctx.Query("limit", "10"))
	level := ctx.Query("level", "")

	res, err := c.service.GetLogs(ctx.UserContext(), level, page, limit)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get logs", res))
}

func (c *adminController) GetLogDetail(ctx *fiber.Ctx) error {
	res, err := c.service.GetLogDetail(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get log detail", res))
}
