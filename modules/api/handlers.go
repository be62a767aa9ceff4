package api

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"

	"github.com/example/chat-app/domain/apperror"
	domain "github.com/example/chat-app/domain/message"
	"github.com/example/chat-app/modules/activity"
	"github.com/example/chat-app/modules/auth"
	"github.com/example/chat-app/modules/chat"
	"github.com/example/chat-app/modules/files"
	"github.com/example/chat-app/modules/messages"
	"github.com/example/chat-app/modules/presence"
	"github.com/example/chat-app/modules/ratelimit"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// BlobStore stores and serves uploaded files.
type BlobStore interface {
	Store(ctx context.Context, up files.Upload) (*domain.FileRef, error)
	Open(ctx context.Context, path string) (io.ReadCloser, *files.BlobInfo, error)
	Delete(ctx context.Context, path string) error
}

// LiveGateway is the live connection layer behind /ws.
type LiveGateway interface {
	Admit(ctx context.Context, token string) (presence.Connection, error)
	Connect(c presence.Connection) (*chat.Mailbox, error)
	Handle(ctx context.Context, connID string, raw []byte)
	Disconnect(connID string)
	Snapshot() []presence.Member
	RoomCounts() map[string]int
	ConnectionCount() int
}

var (
	_ BlobStore   = (*files.Service)(nil)
	_ LiveGateway = (*chat.Gateway)(nil)
)

// Handlers serves the HTTP API.
type Handlers struct {
	auth     auth.AuthPort
	messages messages.MessagesPort
	activity activity.ActivityPort
	limiter  ratelimit.RateLimitPort
	blobs    BlobStore
	gateway  LiveGateway
	logger   types.Logger
}

// NewHandlers creates Handlers. activity and limiter may be nil.
func NewHandlers(
	authPort auth.AuthPort,
	messagesPort messages.MessagesPort,
	activityPort activity.ActivityPort,
	limiter ratelimit.RateLimitPort,
	blobs BlobStore,
	gateway LiveGateway,
	logger types.Logger,
) *Handlers {
	return &Handlers{
		auth:     authPort,
		messages: messagesPort,
		activity: activityPort,
		limiter:  limiter,
		blobs:    blobs,
		gateway:  gateway,
		logger:   logger,
	}
}

// Routes registers every route on app.
func (h *Handlers) Routes(app *fiber.App) {
	requireAuth := AuthMiddleware(h.auth)

	app.Get("/health", h.Health)
	app.Get("/uploads/*", h.ServeUpload)

	api := app.Group("/api")
	api.Post("/auth/register", h.Register)
	api.Post("/auth/login", h.Login)

	api.Get("/messages/:room", requireAuth, h.ListMessages)
	api.Post("/messages", requireAuth, RateLimitMiddleware(h.limiter, h.logger), h.SendMessage)
	api.Delete("/messages", requireAuth, h.DeleteMessages)

	api.Post("/upload", requireAuth, h.UploadFile)
	api.Post("/profile/avatar", requireAuth, h.UploadAvatar)

	api.Get("/rooms", h.ListRooms)
	api.Get("/presence", h.Presence)

	app.Use("/ws", h.AdmitWebSocket)
	app.Get("/ws", h.WebSocket())
}

// Health handles GET /health.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "ok",
		Details: map[string]any{
			"connections": h.gateway.ConnectionCount(),
			"rooms":       len(h.gateway.RoomCounts()),
		},
	})
}

// Register handles POST /api/auth/register.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badRequest("Invalid request body"))
	}

	session, err := h.auth.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toAuthResponse(session))
}

// Login handles POST /api/auth/login.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badRequest("Invalid request body"))
	}

	session, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(toAuthResponse(session))
}

// ListMessages handles GET /api/messages/:room.
func (h *Handlers) ListMessages(c *fiber.Ctx) error {
	room, err := url.PathUnescape(c.Params("room"))
	if err != nil {
		return fail(c, apperror.New(apperror.KindValidation, apperror.CodeInvalidRoom, "Invalid room name"))
	}

	views, err := h.messages.ListRoom(c.UserContext(), room)
	if err != nil {
		return fail(c, err)
	}
	if views == nil {
		views = []domain.View{}
	}
	return c.JSON(views)
}

// SendMessage handles POST /api/messages. The message is stored without
// being relayed to live connections.
func (h *Handlers) SendMessage(c *fiber.Ctx) error {
	claims, _ := GetClaims(c)

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badRequest("Invalid request body"))
	}

	view, err := h.messages.Append(c.UserContext(), domain.Draft{
		SenderID:  claims.UserID,
		Room:      req.Room,
		Text:      req.Text,
		File:      req.File,
		ReplyToID: req.ReplyToID,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(view)
}

// DeleteMessages handles DELETE /api/messages.
func (h *Handlers) DeleteMessages(c *fiber.Ctx) error {
	claims, _ := GetClaims(c)

	var req DeleteMessagesRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badRequest("Invalid request body"))
	}

	deleted, err := h.messages.DeleteMany(c.UserContext(), claims.UserID, req.IDs)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(DeleteMessagesResponse{
		Message: fmt.Sprintf("%d message(s) deleted successfully.", deleted),
		Deleted: deleted,
	})
}

// UploadFile handles POST /api/upload.
func (h *Handlers) UploadFile(c *fiber.Ctx) error {
	ref, err := h.storeForm(c, "chatFile", files.KindChatFile)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(UploadResponse{
		Message:  "File uploaded successfully.",
		FilePath: ref.Path,
		FileName: ref.Name,
		MimeType: ref.MimeType,
	})
}

// UploadAvatar handles POST /api/profile/avatar. The previous avatar blob
// is removed once the profile points at the new one.
func (h *Handlers) UploadAvatar(c *fiber.Ctx) error {
	claims, _ := GetClaims(c)
	ctx := c.UserContext()

	ref, err := h.storeForm(c, "profilePic", files.KindProfilePic)
	if err != nil {
		return fail(c, err)
	}

	previous, err := h.auth.UpdateAvatar(ctx, claims.UserID, ref.Path)
	if err != nil {
		if derr := h.blobs.Delete(ctx, ref.Path); derr != nil {
			h.logger.Warn("Failed to remove orphaned avatar", "path", ref.Path, "error", derr)
		}
		return fail(c, err)
	}

	if previous != nil && *previous != "" && *previous != ref.Path {
		if err := h.blobs.Delete(ctx, *previous); err != nil && apperror.KindOf(err) != apperror.KindNotFound {
			h.logger.Warn("Failed to remove previous avatar", "path", *previous, "error", err)
		}
	}

	return c.JSON(AvatarResponse{
		Message:   "Profile picture updated successfully.",
		AvatarURL: ref.Path,
	})
}

// ServeUpload handles GET /uploads/*.
func (h *Handlers) ServeUpload(c *fiber.Ctx) error {
	path, err := url.PathUnescape(c.Path())
	if err != nil {
		return fail(c, apperror.New(apperror.KindNotFound, apperror.CodeBlobNotFound, "File not found"))
	}

	reader, info, err := h.blobs.Open(c.UserContext(), path)
	if err != nil {
		return fail(c, err)
	}

	c.Set(fiber.HeaderContentType, info.ContentType)
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	if info.Digest != "" {
		c.Set(fiber.HeaderETag, `"`+info.Digest+`"`)
	}
	// fasthttp closes the reader once the body is written.
	return c.SendStream(reader, int(info.Size))
}

// ListRooms handles GET /api/rooms. Stored activity is merged with live
// member counts; without activity only live rooms are listed.
func (h *Handlers) ListRooms(c *fiber.Ctx) error {
	live := h.gateway.RoomCounts()
	resp := RoomsResponse{Rooms: make([]RoomSummary, 0, len(live))}
	seen := make(map[string]bool, len(live))

	if h.activity != nil {
		act, err := h.activity.RoomActivity(c.UserContext(), "")
		if err != nil {
			h.logger.Warn("Room activity unavailable", "error", err)
		} else {
			resp.Totals = &act.Totals
			for _, ra := range act.Rooms {
				seen[ra.Room] = true
				resp.Rooms = append(resp.Rooms, RoomSummary{
					Room:          ra.Room,
					Online:        live[ra.Room],
					Messages:      ra.Messages,
					Joins:         ra.Joins,
					LastMessageAt: ra.LastMessageAt,
					LastJoinAt:    ra.LastJoinAt,
				})
			}
		}
	}

	for room, online := range live {
		if !seen[room] {
			resp.Rooms = append(resp.Rooms, RoomSummary{Room: room, Online: online})
		}
	}
	sort.Slice(resp.Rooms, func(i, j int) bool { return resp.Rooms[i].Room < resp.Rooms[j].Room })

	return c.JSON(resp)
}

// Presence handles GET /api/presence.
func (h *Handlers) Presence(c *fiber.Ctx) error {
	users := h.gateway.Snapshot()
	if users == nil {
		users = []presence.Member{}
	}
	return c.JSON(PresenceResponse{
		Users:       users,
		Connections: h.gateway.ConnectionCount(),
	})
}

func (h *Handlers) storeForm(c *fiber.Ctx, field string, kind files.Kind) (*domain.FileRef, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, badRequest("No file uploaded in field " + field)
	}

	body, err := header.Open()
	if err != nil {
		return nil, badRequest("Failed to read uploaded file")
	}
	defer body.Close()

	return h.blobs.Store(c.UserContext(), files.Upload{
		Kind:        kind,
		Filename:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Size:        header.Size,
		Body:        body,
	})
}

func toAuthResponse(s *auth.SessionResponse) AuthResponse {
	resp := AuthResponse{Token: s.Token, ExpiresIn: s.ExpiresIn}
	if s.User != nil {
		resp.ID = s.User.ID
		resp.Username = s.User.Username
		resp.AvatarURL = s.User.AvatarURL
	}
	return resp
}
