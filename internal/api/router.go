package api

import "github.com/gin-gonic/gin"

func NewRouter(app App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), AccessLogMiddleware(app.Logger()))

	r.GET("/healthz", func(c *gin.Context) {
		HandleSuccess(c, app.Logger(), gin.H{"status": "ok"}, nil)
	})

	users := r.Group("/", UserMiddleware(app.Logger()))
	users.POST("/sleep/start", StartSleep(app))
	users.POST("/sleep/end", EndSleep(app))
	users.GET("/sleep/pending", GetPending(app))
	users.GET("/sleep", GetSleepDay(app))
	users.POST("/sleep", PostSleep(app))
	users.GET("/coins", GetCoins(app))
	users.GET("/store/items", GetStoreItems(app))
	users.POST("/store/purchase", PostPurchase(app))

	return r
}
