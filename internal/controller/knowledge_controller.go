package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"ai-support-be/internal/constant"
	"ai-support-be/internal/dto"
	"ai-support-be/internal/entity"
	"ai-support-be/internal/mapper"
	"ai-support-be/internal/pkg/logger"
	"ai-support-be/internal/pkg/serverutils"
	"ai-support-be/pkg/ingest"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

const sseHeartbeat = 15 * time.Second

type IKnowledgeController interface {
	RegisterRoutes(r fiber.Router, auth fiber.Handler)
	SubmitText(ctx *fiber.Ctx) error
	SubmitUrl(ctx *fiber.Ctx) error
	SubmitFile(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Resubmit(ctx *fiber.Ctx) error
	StatusStream(ctx *fiber.Ctx) error
}

type knowledgeController struct {
	ingestService ingest.IService
	mapper        *mapper.KnowledgeMapper
	logger        logger.ILogger
}

func NewKnowledgeController(ingestService ingest.IService, log logger.ILogger) IKnowledgeController {
	return &knowledgeController{
		ingestService: ingestService,
		mapper:        mapper.NewKnowledgeMapper(),
		logger:        log,
	}
}

func (c *knowledgeController) RegisterRoutes(r fiber.Router, auth fiber.Handler) {
	h := r.Group("/knowledge/v1")
	h.Use(auth)
	h.Get("status/stream", c.StatusStream)
	h.Post("documents/text", c.SubmitText)
	h.Post("documents/url", c.SubmitUrl)
	h.Post("documents/file", c.SubmitFile)
	h.Get("documents", c.List)
	h.Get("documents/:id", c.Show)
	h.Delete("documents/:id", c.Delete)
	h.Post("documents/:id/resubmit", c.Resubmit)
}

func (c *knowledgeController) SubmitText(ctx *fiber.Ctx) error {
	var req dto.SubmitTextRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	return c.submit(ctx, constant.SourceTypeText, ingest.Payload{Name: req.Name, Text: req.Content})
}

func (c *knowledgeController) SubmitUrl(ctx *fiber.Ctx) error {
	var req dto.SubmitUrlRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	return c.submit(ctx, constant.SourceTypeUrl, ingest.Payload{Name: req.Name, URL: req.Url})
}

func (c *knowledgeController) SubmitFile(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Missing file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}

	return c.submit(ctx, constant.SourceTypeDocument, ingest.Payload{
		Name:     ctx.FormValue("name"),
		Data:     data,
		Filename: fileHeader.Filename,
	})
}

func (c *knowledgeController) submit(ctx *fiber.Ctx, sourceType string, payload ingest.Payload) error {
	doc, err := c.ingestService.EnqueueIngest(ctx.UserContext(), serverutils.OrganizationID(ctx), sourceType, payload)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Document queued", dto.SubmitDocumentResponse{
		DocumentId: doc.Id,
		Status:     doc.Status,
	}))
}

func (c *knowledgeController) List(ctx *fiber.Ctx) error {
	var req dto.ListDocumentsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	docs, err := c.ingestService.ListDocuments(ctx.UserContext(), serverutils.OrganizationID(ctx), req.Status)
	if err != nil {
		return err
	}

	res := make([]*dto.IngestDocumentResponse, 0, len(docs))
	for _, d := range docs {
		res = append(res, c.listed(d))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success", res))
}

// listed omits the content body, which can be large.
func (c *knowledgeController) listed(d *entity.IngestDocument) *dto.IngestDocumentResponse {
	res := c.mapper.DocumentToResponse(d)
	res.Content = nil
	return res
}

func (c *knowledgeController) Show(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid document id")
	}

	doc, err := c.ingestService.GetDocument(ctx.UserContext(), serverutils.OrganizationID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success", c.mapper.DocumentToResponse(doc)))
}

func (c *knowledgeController) Delete(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid document id")
	}

	if err := c.ingestService.DeleteDocument(ctx.UserContext(), serverutils.OrganizationID(ctx), id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Document deleted", nil))
}

func (c *knowledgeController) Resubmit(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid document id")
	}

	doc, err := c.ingestService.Resubmit(ctx.UserContext(), serverutils.OrganizationID(ctx), id)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Document queued", dto.SubmitDocumentResponse{
		DocumentId: doc.Id,
		Status:     doc.Status,
	}))
}

// StatusStream pushes the organization's ingest status events as server-sent events.
// Only events published after the subscription are delivered.
func (c *knowledgeController) StatusStream(ctx *fiber.Ctx) error {
	orgID := serverutils.OrganizationID(ctx)

	// The stream writer outlives the handler, so the subscription gets its own context.
	subCtx, cancel := context.WithCancel(context.Background())
	events, err := c.ingestService.SubscribeIngestStatus(subCtx, orgID)
	if err != nil {
		cancel()
		return err
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		c.logger.Debug("INGEST", "Status stream opened", map[string]interface{}{"organization_id": orgID.String()})

		heartbeat := time.NewTicker(sseHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: status\ndata: %s\n\n", payload)
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				c.logger.Debug("INGEST", "Status stream closed", map[string]interface{}{"organization_id": orgID.String()})
				return
			}
		}
	}))
	return nil
}
