package api

import (
	"github.com/gin-gonic/gin"
	"github.com/yourname/sleepcat/internal/service"
)

func GetCoins(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		balance, err := app.Shop().Balance(c.Request.Context(), user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch balance")
			return
		}

		HandleSuccess(c, app.Logger(), balance, nil)
	}
}

func GetStoreItems(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		items, err := app.Shop().Catalog(c.Request.Context(), user.ID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to fetch items")
			return
		}

		HandleSuccess(c, app.Logger(), items, nil)
	}
}

func PostPurchase(app App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)

		var req service.PurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Invalid request: item_id required")
			return
		}
		if err := service.ValidatePurchaseRequest(&req); err != nil {
			HandleError(c, app.Logger(), err, 400, "Purchase validation failed")
			return
		}

		balance, err := app.Shop().Purchase(c.Request.Context(), user.ID, req.ItemID)
		if err != nil {
			HandleServiceError(c, app.Logger(), err, "Failed to buy item")
			return
		}

		HandleSuccess(c, app.Logger(), balance, map[string]any{"item_id": req.ItemID})
	}
}
