package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/Dev-Manje/helpdesk/pkg/util/errorutil"
	"github.com/Dev-Manje/helpdesk/pkg/util/validate"
)

// bind parses the JSON body into req and validates its tags.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return validate.Default.Struct(req)
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optionalString(c *fiber.Ctx, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

func optionalBool(c *fiber.Ctx, key string) *bool {
	val := c.Query(key)
	if val == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return nil
	}
	return &parsed
}

func urgencyParam(c *fiber.Ctx) (int, error) {
	level, err := strconv.Atoi(c.Params("level"))
	if err != nil || level < 1 || level > 3 {
		return 0, apperrors.NewValidationError("invalid urgency level", map[string]any{"level": c.Params("level")})
	}
	return level, nil
}
