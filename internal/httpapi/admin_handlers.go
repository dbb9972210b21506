package httpapi

import (
	"github.com/gofiber/fiber/v2"

	"crashcore/internal/store"
)

type statsView struct {
	TotalUsers   int64   `json:"totalUsers"`
	ActiveUsers  int64   `json:"activeUsers"`
	TotalRounds  int64   `json:"totalRounds"`
	TotalWagered float64 `json:"totalWagered"`
	TotalWon     float64 `json:"totalWon"`
	TotalLost    float64 `json:"totalLost"`
	HouseNet     float64 `json:"houseNet"`
}

// admin.stats
func (s *Server) adminStatsHandler(c *fiber.Ctx) error {
	stats, err := s.gw.AggregateStats(c.Context())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(statsView{
		TotalUsers:   stats.TotalUsers,
		ActiveUsers:  stats.ActiveUsers,
		TotalRounds:  stats.TotalRounds,
		TotalWagered: stats.TotalWagered.Float64(),
		TotalWon:     stats.TotalWon.Float64(),
		TotalLost:    stats.TotalLost.Float64(),
		HouseNet:     stats.HouseNet.Float64(),
	})
}

// admin.listUsers
func (s *Server) adminListUsersHandler(c *fiber.Ctx) error {
	var filter store.UserFilter
	if role := c.Query("role"); role != "" {
		r := store.Role(role)
		filter.Role = &r
	}
	if active := c.Query("active"); active != "" {
		a := active == "true"
		filter.Active = &a
	}
	filter.Search = c.Query("search")

	page := store.Page{Limit: c.QueryInt("limit", 50), Offset: c.QueryInt("offset", 0)}
	if page.Limit <= 0 || page.Limit > 200 {
		page.Limit = 50
	}

	users, err := s.gw.ListUsers(c.Context(), filter, page)
	if err != nil {
		return writeErr(c, err)
	}
	views := make([]userView, len(users))
	for i := range users {
		views[i] = toUserView(&users[i])
	}
	return c.JSON(views)
}

// admin.updateUser
func (s *Server) adminUpdateUserHandler(c *fiber.Ctx) error {
	var body struct {
		Handle *string `json:"handle"`
		Role   *string `json:"role"`
		Active *bool   `json:"active"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	var fields store.UserFields
	fields.Handle = body.Handle
	fields.Active = body.Active
	if body.Role != nil {
		r := store.Role(*body.Role)
		fields.Role = &r
	}

	u, err := s.gw.UpdateUserAdmin(c.Context(), c.Params("id"), fields)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(toUserView(u))
}

// admin.listRounds
func (s *Server) adminListRoundsHandler(c *fiber.Ctx) error {
	page := store.Page{Limit: c.QueryInt("limit", 50), Offset: c.QueryInt("offset", 0)}
	if page.Limit <= 0 || page.Limit > 200 {
		page.Limit = 50
	}
	rounds, err := s.gw.ListRounds(c.Context(), page)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(rounds)
}
