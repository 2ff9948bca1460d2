package api

import (
	"io"

	"github.com/gofiber/fiber/v2"
)

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

type createChannelReq struct {
	CommunityID string `json:"community_id"`
}

func (s *Server) getOrCreateChannel(c *fiber.Ctx) error {
	var req createChannelReq
	if err := c.BodyParser(&req); err != nil || req.CommunityID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "community_id required")
	}
	ch, err := s.chat.GetOrCreateChannel(c.Context(), req.CommunityID, userID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"channel_id": ch.ID})
}

type createMessageReq struct {
	Content      string `json:"content"`
	Type         string `json:"type"`
	AttachmentID string `json:"attachment_id"`
	ClientToken  string `json:"client_token"`
}

func (s *Server) createMessage(c *fiber.Ctx) error {
	var req createMessageReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	m, err := s.chat.CreateMessage(c.Context(), c.Params("channel_id"), userID(c),
		req.Content, req.Type, req.AttachmentID, req.ClientToken)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

type updateMessageReq struct {
	Content string `json:"content"`
}

func (s *Server) updateMessage(c *fiber.Ctx) error {
	var req updateMessageReq
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	m, err := s.chat.EditMessage(c.Context(), c.Params("msg_id"), userID(c), req.Content)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(m)
}

func (s *Server) deleteMessage(c *fiber.Ctx) error {
	if err := s.chat.DeleteMessage(c.Context(), c.Params("msg_id"), userID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{})
}

func (s *Server) listMessages(c *fiber.Ctx) error {
	msgs, next, err := s.chat.ListMessages(c.Context(), c.Params("channel_id"), userID(c),
		c.Query("cursor"), int64(c.QueryInt("limit")))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"messages": msgs, "next_cursor": next})
}

func (s *Server) heartbeat(c *fiber.Ctx) error {
	if err := s.chat.Heartbeat(c.Context(), c.Params("channel_id"), userID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{})
}

func (s *Server) typing(c *fiber.Ctx) error {
	if err := s.chat.TypingSignal(c.Context(), c.Params("channel_id"), userID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{})
}

func (s *Server) presence(c *fiber.Ctx) error {
	count, err := s.chat.OnlineCount(c.Context(), c.Params("channel_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"online_count": count})
}

func (s *Server) uploadAttachment(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "file field required")
	}
	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unreadable file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unreadable file")
	}

	a, err := s.pipeline.Process(c.Context(), userID(c), fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (s *Server) attachmentURL(c *fiber.Ctx) error {
	url, err := s.pipeline.URLFor(c.Context(), c.Params("attachment_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}
