package handler

import (
	"log/slog"
	"net/http"

	"github.com/segyhp/ledger-engine/pkg/response"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
)

const apiPrefix = "/api/v1"

// NewRouter wires every endpoint and the shared middleware
func NewRouter(banking *BankingHandler, health *HealthHandler, logger *slog.Logger) http.Handler {
	router := mux.NewRouter()

	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		response.LoggingMiddleware(logger),
		middleware.Recoverer,
	)

	// Health check
	router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", health.Ready).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	// API routes live on the root router; a mux subrouter answers a wrong method with 404
	router.HandleFunc(apiPrefix+"/accounts", banking.OpenAccount).Methods(http.MethodPost)
	router.HandleFunc(apiPrefix+"/accounts/{account}/balance", banking.Balance).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/accounts/{account}/statement", banking.Statement).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/accounts/{account}/deposits", banking.Deposit).Methods(http.MethodPost)
	router.HandleFunc(apiPrefix+"/accounts/{account}/withdrawals", banking.Withdraw).Methods(http.MethodPost)
	router.HandleFunc(apiPrefix+"/accounts/{account}/transfers", banking.Transfer).Methods(http.MethodPost)
	router.HandleFunc(apiPrefix+"/accounts/{account}/loans", banking.AccountLoans).Methods(http.MethodGet)

	router.HandleFunc(apiPrefix+"/loans", banking.DisburseLoan).Methods(http.MethodPost)
	router.HandleFunc(apiPrefix+"/loans/overdue", banking.OverdueLoans).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/loans/{loanId:[0-9]+}/payoff", banking.LoanPayoff).Methods(http.MethodGet)
	router.HandleFunc(apiPrefix+"/loans/{loanId:[0-9]+}/repayments", banking.RepayLoan).Methods(http.MethodPost)
	router.HandleFunc(apiPrefix+"/loans/{loanId:[0-9]+}/activity", banking.LoanActivity).Methods(http.MethodGet)

	// CORS wraps the router so preflight requests are answered before route matching
	return response.CORSMiddleware()(router)
}
