package main

import (
	"log"
	"os"

	"firebase.google.com/go/v4/auth"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/elbourki/paymentkit/internal/handlers"
	appMiddleware "github.com/elbourki/paymentkit/internal/middleware"
	"github.com/elbourki/paymentkit/internal/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	// Initialize Firebase
	credPath := os.Getenv("FIREBASE_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = "./firebase-service-account.json"
	}

	var authClient *auth.Client
	authClient, err := services.InitFirebase(credPath)
	if err != nil {
		log.Printf("Warning: Firebase initialization failed: %v", err)
		log.Println("Auth features will not work until valid credentials are provided")
	}

	// Initialize Database
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := services.InitDB(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := services.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize Redis (optional; services degrade to direct reads without it)
	var cache services.Cache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisCache, err := services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Redis initialization failed: %v", err)
		} else {
			cache = redisCache
		}
	} else {
		log.Println("Warning: REDIS_URL not set, caching disabled")
	}

	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		appURL = "http://localhost:8080"
	}

	// Initialize services
	accountService := services.NewAccountService(db, cache)
	paymentService := services.NewPaymentService(db)
	checkoutService := services.NewCheckoutService(db, accountService, paymentService, appURL)
	productService := services.NewProductService(accountService)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = appMiddleware.JSONErrorHandler

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authClient, db)
	accountHandler := handlers.NewAccountHandler(accountService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, checkoutService, accountService)
	productHandler := handlers.NewProductHandler(productService)

	// Session routes
	e.POST("/api/login", authHandler.HandleLogin)
	e.POST("/api/logout", authHandler.HandleLogout)
	e.GET("/api/user", authHandler.CurrentUser)

	// Payer-facing routes; payments are addressed by short id only
	e.GET("/api/pay/:short_id", paymentHandler.ShowPayment)
	e.POST("/api/options", paymentHandler.Options)
	e.POST("/api/checkout", paymentHandler.CreateCheckout)
	e.POST("/api/payments/verify", paymentHandler.VerifyCheckout)

	// Merchant routes
	protected := e.Group("/api", appMiddleware.RequireAuth(authClient, db))
	protected.POST("/payments", paymentHandler.CreatePayment)
	protected.GET("/payments", paymentHandler.ListPayments)
	protected.POST("/connect-rapyd", accountHandler.ConnectRapyd)
	protected.POST("/settings", accountHandler.UpdateSettings)
	protected.GET("/data/currencies", accountHandler.Currencies)
	protected.GET("/data/countries", accountHandler.Countries)
	protected.GET("/products", productHandler.ListProducts)
	protected.POST("/products", productHandler.CreateProduct)
	protected.POST("/products/:id", productHandler.UpdateProduct)
	protected.DELETE("/products/:id", productHandler.DeleteProduct)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}
