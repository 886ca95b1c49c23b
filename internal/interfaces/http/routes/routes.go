// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vaarahi/storefront/internal/config"
	"github.com/vaarahi/storefront/internal/domain/cart"
	"github.com/vaarahi/storefront/internal/domain/cartsync"
	"github.com/vaarahi/storefront/internal/domain/checkout"
	"github.com/vaarahi/storefront/internal/domain/payment"
	"github.com/vaarahi/storefront/internal/domain/user"
	"github.com/vaarahi/storefront/internal/domain/wishlist"
	"github.com/vaarahi/storefront/internal/interfaces/http/handlers"
	"github.com/vaarahi/storefront/internal/interfaces/http/middleware"
	"github.com/vaarahi/storefront/internal/pkg/auth"
	"github.com/vaarahi/storefront/internal/pkg/notify"
	"github.com/vaarahi/storefront/internal/pkg/pdf"
)

// Services is everything the routes need, built once in main.
type Services struct {
	Config    *config.Config
	Carts     *cart.Service
	Sync      *cartsync.Synchronizer
	Checkout  *checkout.Service
	Providers *payment.Registry
	PhonePe   *payment.PhonePeSimulator
	Users     *user.Service
	Wishlist  *wishlist.Service
	Feed      *notify.Feed
	Receipts  *pdf.Service
	Tokens    *auth.JWTManager
	Log       logrus.FieldLogger
}

// SetupAuthRoutes sets up authentication related routes
func SetupAuthRoutes(rg *gin.RouterGroup, svc *Services) {
	authHandler := handlers.NewAuthHandler(svc.Users)

	auth := rg.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/profile", authHandler.GetProfile)
		auth.PUT("/profile", authHandler.UpdateProfile)

		// Password changes need a bearer token, not just the session cookie
		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(svc.Tokens))
		{
			protected.PUT("/password", authHandler.ChangePassword)
		}
	}
}

// SetupCartRoutes sets up cart related routes
func SetupCartRoutes(rg *gin.RouterGroup, svc *Services) {
	cartHandler := handlers.NewCartHandler(svc.Carts, svc.Sync, svc.Feed)

	cart := rg.Group("/cart")
	{
		cart.GET("", cartHandler.GetCart)
		cart.GET("/count", cartHandler.GetCartCount)
		cart.DELETE("", cartHandler.ClearCart)
		cart.POST("/items", cartHandler.AddToCart)
		cart.PUT("/items/:index", cartHandler.UpdateCartItem)
		cart.DELETE("/items/:index", cartHandler.RemoveFromCart)
		cart.POST("/coupon", cartHandler.ApplyCoupon)
		cart.DELETE("/coupon", cartHandler.RemoveCoupon)
		cart.GET("/legacy", cartHandler.GetLegacyCart)
		cart.PUT("/legacy", cartHandler.PutLegacyCart)
	}
}

// SetupWishlistRoutes sets up wishlist related routes
func SetupWishlistRoutes(rg *gin.RouterGroup, svc *Services) {
	wishlistHandler := handlers.NewWishlistHandler(svc.Wishlist)

	wishlist := rg.Group("/wishlist")
	{
		wishlist.GET("", wishlistHandler.GetWishlist)
		wishlist.GET("/count", wishlistHandler.GetWishlistCount)
		wishlist.GET("/check/:product_id", wishlistHandler.CheckWishlist)
		wishlist.POST("", wishlistHandler.AddToWishlist)
		wishlist.DELETE("", wishlistHandler.ClearWishlist)
		wishlist.DELETE("/:index", wishlistHandler.RemoveFromWishlist)
		wishlist.POST("/:index/move-to-cart", wishlistHandler.MoveToCart)
	}
}

// SetupCheckoutRoutes sets up checkout and payment lifecycle routes
func SetupCheckoutRoutes(rg *gin.RouterGroup, svc *Services) {
	checkoutHandler := handlers.NewCheckoutHandler(svc.Checkout, svc.Users, svc.Providers, svc.PhonePe, svc.Config)

	checkout := rg.Group("/checkout")
	{
		checkout.GET("/config", checkoutHandler.GetConfig)
		checkout.GET("/prefill", checkoutHandler.Prefill)
		checkout.GET("/session", checkoutHandler.GetSession)
		checkout.POST("/place-order", checkoutHandler.PlaceOrder)
		checkout.POST("/payment/success", checkoutHandler.PaymentSuccess)
		checkout.POST("/payment/failure", checkoutHandler.PaymentFailure)
		checkout.POST("/payment/dismiss", checkoutHandler.PaymentDismiss)
		checkout.GET("/payment/status", checkoutHandler.PaymentStatus)
		checkout.POST("/phonepe/simulate", checkoutHandler.SimulatePayment)
	}
}

// SetupOrderRoutes sets up completed order routes
func SetupOrderRoutes(rg *gin.RouterGroup, svc *Services) {
	orderHandler := handlers.NewOrderHandler(svc.Checkout, svc.Receipts, svc.Log)

	orders := rg.Group("/orders")
	{
		orders.GET("", orderHandler.GetOrders)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.GET("/:id/receipt", orderHandler.GetReceipt)
	}
}

// SetupNotificationRoutes sets up notification routes. The stream is long
// lived and must not sit behind the request timeout.
func SetupNotificationRoutes(rg, stream *gin.RouterGroup, svc *Services) {
	notificationHandler := handlers.NewNotificationHandler(svc.Feed)

	rg.GET("/notifications", notificationHandler.GetNotifications)
	stream.GET("/notifications/stream", notificationHandler.Stream)
}

// SetupWebhookRoutes sets up payment provider webhook routes
func SetupWebhookRoutes(rg *gin.RouterGroup, svc *Services) {
	webhookHandler := handlers.NewWebhookHandler(svc.Checkout, svc.Config.Payment.Razorpay.WebhookSecret, svc.Log)

	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/razorpay", webhookHandler.Razorpay)
	}
}

// SetupGatewayRoutes mounts the stateless order creation and verification
// endpoints at the paths the payment widget calls.
func SetupGatewayRoutes(rg *gin.RouterGroup, svc *Services) {
	provider, err := svc.Providers.Get(payment.ProviderRazorpay)
	if err != nil {
		provider = svc.Providers.Default()
	}
	paymentHandler := handlers.NewPaymentHandler(provider, svc.Log)

	rg.POST("/create-order", paymentHandler.CreateOrder)
	rg.POST("/verify-payment", paymentHandler.VerifyPayment)
}

// SetupRoutes sets up all /api/v1 routes. Everything except the notification
// stream runs under the request timeout.
func SetupRoutes(rg *gin.RouterGroup, svc *Services) {
	timed := rg.Group("")
	timed.Use(middleware.Timeout(svc.Config.Server.RequestTimeout))

	SetupAuthRoutes(timed, svc)
	SetupCartRoutes(timed, svc)
	SetupWishlistRoutes(timed, svc)
	SetupCheckoutRoutes(timed, svc)
	SetupOrderRoutes(timed, svc)
	SetupNotificationRoutes(timed, rg, svc)
}
