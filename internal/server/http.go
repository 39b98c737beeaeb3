package server

import (
	"credit-service/internal/conf"
	"credit-service/internal/service"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(
	c *conf.Bootstrap,
	creditService *service.CreditService,
	guestService *service.GuestService,
	promotionService *service.PromotionService,
	checkoutService *service.CheckoutService,
) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Server != nil && c.Server.Http != nil {
		if c.Server.Http.Network != "" {
			opts = append(opts, http.Network(c.Server.Http.Network))
		}
		if c.Server.Http.Addr != "" {
			opts = append(opts, http.Address(c.Server.Http.Addr))
		}
		if c.Server.Http.Timeout != "" {
			opts = append(opts, http.Timeout(c.Server.Http.Timeout.AsDuration()))
		}
	}
	srv := http.NewServer(opts...)

	registerCreditRoutes(srv, creditService)
	registerGuestRoutes(srv, guestService)
	registerPromotionRoutes(srv, promotionService)
	registerCheckoutRoutes(srv, checkoutService)

	srv.Handle("/metrics", promhttp.Handler())

	return srv
}

func registerCreditRoutes(srv *http.Server, svc *service.CreditService) {
	r := srv.Route("/")

	r.POST("/credits/check", func(ctx http.Context) error {
		var req service.CheckBalanceRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.CheckBalance(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/credits/deduct", func(ctx http.Context) error {
		var req service.DeductRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.Deduct(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/credits/grant", func(ctx http.Context) error {
		var req service.GrantRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.Grant(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/credits/welcome-bonus", func(ctx http.Context) error {
		var req service.WelcomeBonusRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.GrantWelcomeBonus(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/credits/account", func(ctx http.Context) error {
		var req service.GetAccountRequest
		if err := ctx.BindQuery(&req); err != nil {
			return err
		}
		reply, err := svc.GetAccount(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/credits/transactions", func(ctx http.Context) error {
		var req service.ListTransactionsRequest
		if err := ctx.BindQuery(&req); err != nil {
			return err
		}
		reply, err := svc.ListTransactions(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/credits/audit", func(ctx http.Context) error {
		var req service.AuditRequest
		if err := ctx.BindQuery(&req); err != nil {
			return err
		}
		reply, err := svc.ReplayBalance(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

func registerGuestRoutes(srv *http.Server, svc *service.GuestService) {
	r := srv.Route("/")

	r.POST("/guest-quota/check", func(ctx http.Context) error {
		var req service.CheckGuestQuotaRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		// IP 未显式传入时取请求端地址（仅参考，不参与限流判定）
		if req.IP == "" {
			req.IP = ctx.Header().Get("X-Forwarded-For")
		}
		reply, err := svc.CheckQuota(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

func registerPromotionRoutes(srv *http.Server, svc *service.PromotionService) {
	r := srv.Route("/")

	r.POST("/discount/validate", func(ctx http.Context) error {
		var req service.ValidateDiscountRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.ValidateDiscount(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/discount/codes", func(ctx http.Context) error {
		var req service.CreateDiscountCodeRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.CreateDiscountCode(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}

func registerCheckoutRoutes(srv *http.Server, svc *service.CheckoutService) {
	r := srv.Route("/")

	r.POST("/checkout/place-order", func(ctx http.Context) error {
		var req service.PlaceOrderRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.PlaceOrder(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.POST("/checkout/payment-webhook", func(ctx http.Context) error {
		var req service.PaymentWebhookRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}
		reply, err := svc.HandlePaymentWebhook(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}
