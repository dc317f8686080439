package api

import (
	"github.com/gin-gonic/gin"
	"github.com/yourname/sleepcat/internal/service"
)

type EndSleepRequest struct {
	SessionID string `json:"session_id"`
}

func StartSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		session, err := app.Lifecycle().Start(c.Request.Context(), user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to start sleep")
			return
		}

		HandleCreated(c, app.Logger(), session, nil)
	}
}

// EndSleep closes the session named in the body, or the pending one when the
// body is empty.
func EndSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		var body EndSleepRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&body); err != nil {
				HandleError(c, app.Logger(), err, 400, "Invalid JSON")
				return
			}
		}

		var (
			result *service.EndResult
			err    error
		)
		if body.SessionID != "" {
			result, err = app.Lifecycle().EndOwned(c.Request.Context(), user.ID, body.SessionID)
		} else {
			result, err = app.Lifecycle().EndPending(c.Request.Context(), user.ID)
		}
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to end sleep")
			return
		}

		HandleSuccess(c, app.Logger(), result, nil)
	}
}

// PostSleep records a session entered by hand. No coins are paid for it.
func PostSleep(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		var req service.LogRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid JSON")
			return
		}
		if err := service.ValidateLogRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "sleep_time and wake_time are required")
			return
		}

		session, err := app.History().Add(c.Request.Context(), user.ID, req.SleepTime, req.WakeTime)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to save session")
			return
		}

		HandleCreated(c, app.Logger(), session, nil)
	}
}

func GetPending(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		session, err := app.Lifecycle().Pending(c.Request.Context(), user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to read pending session")
			return
		}

		HandleSuccess(c, app.Logger(), session, map[string]any{"sleeping": session != nil})
	}
}

func GetSleepDay(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		var req service.DayRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid query")
			return
		}
		if err := service.ValidateDayRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Date must be YYYY-MM-DD")
			return
		}

		summary, err := app.History().Day(c.Request.Context(), user.ID, req.Date)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch sessions")
			return
		}

		HandleSuccess(c, app.Logger(), summary.Sessions, map[string]any{
			"date":          summary.Date,
			"total_minutes": summary.TotalMinutes,
		})
	}
}
