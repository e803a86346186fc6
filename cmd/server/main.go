package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yasminehelmy/cosmetra-backend/internal/auth"
	"github.com/yasminehelmy/cosmetra-backend/internal/dashboard"
	"github.com/yasminehelmy/cosmetra-backend/internal/invoice"
	"github.com/yasminehelmy/cosmetra-backend/internal/material"
	"github.com/yasminehelmy/cosmetra-backend/internal/order"
	"github.com/yasminehelmy/cosmetra-backend/internal/party"
	"github.com/yasminehelmy/cosmetra-backend/internal/product"
	"github.com/yasminehelmy/cosmetra-backend/internal/recipe"
	"github.com/yasminehelmy/cosmetra-backend/internal/reports"
	"github.com/yasminehelmy/cosmetra-backend/internal/settings"
	"github.com/yasminehelmy/cosmetra-backend/internal/treasury"
	"github.com/yasminehelmy/cosmetra-backend/internal/user"
	"github.com/yasminehelmy/cosmetra-backend/pkg/database"
	"github.com/yasminehelmy/cosmetra-backend/pkg/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using system environment variables")
	}

	db, err := database.Connect()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	if err := database.Migrate(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	r := gin.Default()
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		// Auth routes (public)
		authHandler := auth.NewHandler(db)
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)
		v1.POST("/auth/refresh", authHandler.RefreshToken)

		protected := v1.Group("")
		protected.Use(middleware.AuthRequired())
		// Destructive and financial actions are restricted to owner/manager
		privileged := protected.Group("")
		privileged.Use(middleware.RequireRole("owner", "manager"))
		{
			protected.GET("/auth/me", authHandler.GetMe)

			// Dashboard routes
			dashboardHandler := dashboard.NewHandler(db)
			protected.GET("/dashboard/stats", dashboardHandler.GetStats)
			protected.GET("/dashboard/top-products", dashboardHandler.GetTopProducts)
			protected.GET("/dashboard/recent", dashboardHandler.GetRecentDocuments)

			// Raw and packaging material routes
			materialHandler := material.NewHandler(db)
			protected.GET("/raw-materials", materialHandler.ListRaw)
			protected.POST("/raw-materials", materialHandler.CreateRaw)
			protected.GET("/raw-materials/:id", materialHandler.GetRaw)
			protected.PUT("/raw-materials/:id", materialHandler.UpdateRaw)
			privileged.DELETE("/raw-materials/:id", materialHandler.DeleteRaw)
			protected.PUT("/raw-materials/:id/stock", materialHandler.AdjustRawStock)
			protected.POST("/raw-materials/import", materialHandler.ImportRaw)
			protected.GET("/packaging-materials", materialHandler.ListPackaging)
			protected.POST("/packaging-materials", materialHandler.CreatePackaging)
			protected.GET("/packaging-materials/:id", materialHandler.GetPackaging)
			protected.PUT("/packaging-materials/:id", materialHandler.UpdatePackaging)
			privileged.DELETE("/packaging-materials/:id", materialHandler.DeletePackaging)
			protected.PUT("/packaging-materials/:id/stock", materialHandler.AdjustPackagingStock)
			protected.GET("/materials/alerts", materialHandler.GetAlerts)

			// Semi-finished products and recipes
			recipeHandler := recipe.NewHandler(db)
			protected.GET("/semi-finished", recipeHandler.List)
			protected.POST("/semi-finished", recipeHandler.Create)
			protected.GET("/semi-finished/:id", recipeHandler.Get)
			protected.PUT("/semi-finished/:id", recipeHandler.Update)
			privileged.DELETE("/semi-finished/:id", recipeHandler.Delete)
			protected.PUT("/semi-finished/:id/recipe", recipeHandler.SetRecipe)
			protected.GET("/semi-finished/:id/costing", recipeHandler.GetCosting)
			protected.POST("/semi-finished/:id/apply-cost", recipeHandler.ApplyCost)

			// Finished products and BOMs
			productHandler := product.NewHandler(db)
			protected.GET("/products", productHandler.List)
			protected.POST("/products", productHandler.Create)
			protected.GET("/products/:id", productHandler.Get)
			protected.PUT("/products/:id", productHandler.Update)
			protected.PATCH("/products/:id/toggle", productHandler.ToggleActive)
			privileged.DELETE("/products/:id", productHandler.Delete)
			protected.PUT("/products/:id/components", productHandler.SetComponents)
			protected.GET("/products/:id/availability", productHandler.Availability)

			// Production and packaging orders
			orderHandler := order.NewHandler(db)
			protected.GET("/production-orders", orderHandler.ListProduction)
			protected.POST("/production-orders", orderHandler.CreateProduction)
			protected.GET("/production-orders/:id", orderHandler.GetProduction)
			protected.POST("/production-orders/:id/start", orderHandler.StartProduction)
			protected.POST("/production-orders/:id/complete", orderHandler.CompleteProduction)
			privileged.POST("/production-orders/:id/cancel", orderHandler.CancelProduction)
			privileged.DELETE("/production-orders/:id", orderHandler.DeleteProduction)
			protected.GET("/packaging-orders", orderHandler.ListPackaging)
			protected.POST("/packaging-orders", orderHandler.CreatePackaging)
			protected.GET("/packaging-orders/:id", orderHandler.GetPackaging)
			protected.POST("/packaging-orders/:id/start", orderHandler.StartPackaging)
			protected.POST("/packaging-orders/:id/complete", orderHandler.CompletePackaging)
			privileged.POST("/packaging-orders/:id/cancel", orderHandler.CancelPackaging)
			privileged.DELETE("/packaging-orders/:id", orderHandler.DeletePackaging)

			// Sales, purchases and returns share one handler; the route
			// binds the document kind
			invoiceHandler := invoice.NewHandler(db)
			registerInvoiceRoutes(protected, privileged, invoiceHandler, "/sales-invoices", database.InvoiceSales)
			registerInvoiceRoutes(protected, privileged, invoiceHandler, "/purchase-invoices", database.InvoicePurchase)
			registerInvoiceRoutes(protected, privileged, invoiceHandler, "/sales-returns", database.InvoiceSalesReturn)
			registerInvoiceRoutes(protected, privileged, invoiceHandler, "/purchase-returns", database.InvoicePurchaseReturn)

			// Customers and suppliers
			partyHandler := party.NewHandler(db)
			protected.GET("/customers", partyHandler.ListCustomers)
			protected.POST("/customers", partyHandler.CreateCustomer)
			protected.GET("/customers/:id", partyHandler.GetCustomer)
			protected.PUT("/customers/:id", partyHandler.UpdateCustomer)
			privileged.DELETE("/customers/:id", partyHandler.DeleteCustomer)
			protected.GET("/customers/:id/statement", partyHandler.CustomerStatement)
			protected.GET("/suppliers", partyHandler.ListSuppliers)
			protected.POST("/suppliers", partyHandler.CreateSupplier)
			protected.GET("/suppliers/:id", partyHandler.GetSupplier)
			protected.PUT("/suppliers/:id", partyHandler.UpdateSupplier)
			privileged.DELETE("/suppliers/:id", partyHandler.DeleteSupplier)
			protected.GET("/suppliers/:id/statement", partyHandler.SupplierStatement)
			protected.GET("/parties/stats", partyHandler.Stats)

			// Treasuries
			treasuryHandler := treasury.NewHandler(db)
			protected.GET("/treasuries", treasuryHandler.List)
			privileged.POST("/treasuries", treasuryHandler.Create)
			protected.GET("/treasuries/:id", treasuryHandler.Get)
			privileged.PUT("/treasuries/:id", treasuryHandler.Update)
			privileged.PATCH("/treasuries/:id/toggle", treasuryHandler.ToggleActive)
			privileged.POST("/treasuries/:id/deposit", treasuryHandler.Deposit)
			privileged.POST("/treasuries/:id/withdraw", treasuryHandler.Withdraw)
			privileged.POST("/treasuries/:id/transfer", treasuryHandler.Transfer)
			protected.GET("/treasuries/:id/statement", treasuryHandler.Statement)

			// Reports
			reportsHandler := reports.NewHandler(db)
			protected.GET("/reports/sales", reportsHandler.GetSalesReport)
			protected.GET("/reports/purchases", reportsHandler.GetPurchaseReport)
			protected.GET("/reports/products", reportsHandler.GetProductSalesReport)
			protected.GET("/reports/valuation", reportsHandler.GetInventoryValuation)

			// Company settings
			settingsHandler := settings.NewHandler(db)
			protected.GET("/settings", settingsHandler.Get)
			privileged.PUT("/settings", settingsHandler.Update)

			// Staff management is owner-only
			userHandler := user.NewHandler(db)
			ownerOnly := protected.Group("")
			ownerOnly.Use(middleware.RequireRole("owner"))
			ownerOnly.GET("/staff", userHandler.ListStaff)
			ownerOnly.POST("/staff", userHandler.CreateStaff)
			ownerOnly.PUT("/staff/:id", userHandler.UpdateStaff)
			ownerOnly.DELETE("/staff/:id", userHandler.DeleteStaff)
			ownerOnly.GET("/activity-logs", userHandler.ListActivity)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logrus.WithField("port", port).Info("Server starting")
	if err := r.Run(":" + port); err != nil {
		logrus.WithError(err).Fatal("Failed to start server")
	}
}

func registerInvoiceRoutes(protected, privileged *gin.RouterGroup, h *invoice.Handler, path, kind string) {
	protected.GET(path, h.List(kind))
	protected.POST(path, h.Create(kind))
	protected.GET(path+"/:id", h.Get(kind))
	protected.PUT(path+"/:id", h.Update(kind))
	privileged.DELETE(path+"/:id", h.Delete(kind))
	protected.POST(path+"/:id/post", h.Post(kind))
	privileged.POST(path+"/:id/void", h.Void(kind))
	protected.POST(path+"/:id/payments", h.RegisterPayment(kind))
}
