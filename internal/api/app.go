package api

import (
	"github.com/yourname/sleepcat/internal"
	"github.com/yourname/sleepcat/internal/service"
)

type App interface {
	Logger() internal.Logger
	Lifecycle() *service.Lifecycle
	History() *service.History
	Shop() *service.Shop
}

type app struct {
	logger    internal.Logger
	lifecycle *service.Lifecycle
	history   *service.History
	shop      *service.Shop
}

func NewApp(logger internal.Logger, lifecycle *service.Lifecycle, history *service.History, shop *service.Shop) App {
	return &app{logger: logger, lifecycle: lifecycle, history: history, shop: shop}
}

func (a *app) Logger() internal.Logger { return a.logger }
func (a *app) Lifecycle() *service.Lifecycle { return a.lifecycle }
func (a *app) History() *service.History { return a.history }
func (a *app) Shop() *service.Shop { return a.shop }
