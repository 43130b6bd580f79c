package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/linesmerrill/dispute-resolution-api/api"
	"github.com/linesmerrill/dispute-resolution-api/api/scheduler"
	"github.com/linesmerrill/dispute-resolution-api/config"
	"github.com/linesmerrill/dispute-resolution-api/databases"
	"github.com/linesmerrill/dispute-resolution-api/models"
	"github.com/linesmerrill/dispute-resolution-api/services"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	caseDB := databases.NewCaseDatabase(a.dbHelper)
	messageDB := databases.NewMessageDatabase(a.dbHelper)
	userDB := databases.NewUserDatabase(a.dbHelper)

	c := Case{Service: services.NewCaseService(caseDB, userDB)}
	msg := Message{Service: services.NewMessageService(messageDB, caseDB)}
	u := User{DB: userDB}
	storage := Storage{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")
	apiCreate.Handle("/auth/login", http.HandlerFunc(u.LoginHandler)).Methods("POST")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")

	apiCreate.Handle("/cases", api.Middleware(http.HandlerFunc(c.CreateCaseHandler))).Methods("POST")
	apiCreate.Handle("/cases", api.Middleware(http.HandlerFunc(c.ListCasesHandler))).Methods("GET")
	apiCreate.Handle("/cases/{case_id}", api.Middleware(http.HandlerFunc(c.GetCaseByIDHandler))).Methods("GET")
	apiCreate.Handle("/cases/{case_id}", api.Middleware(http.HandlerFunc(c.UpdateCaseHandler))).Methods("PATCH")
	apiCreate.Handle("/cases/{case_id}/relations", api.Middleware(http.HandlerFunc(c.GetCaseWithRelationsHandler))).Methods("GET")
	apiCreate.Handle("/cases/{case_id}/assign", api.Middleware(http.HandlerFunc(c.AssignCaseHandler))).Methods("PUT")
	apiCreate.Handle("/cases/{case_id}/panelists", api.Middleware(http.HandlerFunc(c.AssignPanelistsHandler))).Methods("PUT")
	apiCreate.Handle("/cases/{case_id}/panelists/{panelist_id}", api.Middleware(http.HandlerFunc(c.RemovePanelistHandler))).Methods("DELETE")
	apiCreate.Handle("/cases/{case_id}/resolution", api.Middleware(http.HandlerFunc(c.SubmitResolutionHandler))).Methods("POST")
	apiCreate.Handle("/cases/{case_id}/finalize", api.Middleware(http.HandlerFunc(c.FinalizeCaseHandler))).Methods("POST")
	apiCreate.Handle("/cases/{case_id}/documents", api.Middleware(http.HandlerFunc(c.AddDocumentHandler))).Methods("POST")
	apiCreate.Handle("/cases/{case_id}/notes", api.Middleware(http.HandlerFunc(c.AddNoteHandler))).Methods("POST")
	apiCreate.Handle("/cases/{case_id}/messages", api.Middleware(http.HandlerFunc(msg.MessagesByCaseHandler))).Methods("GET")

	apiCreate.Handle("/messages", api.Middleware(http.HandlerFunc(msg.CreateMessageHandler))).Methods("POST")
	apiCreate.Handle("/messages/read", api.Middleware(http.HandlerFunc(msg.BulkMarkReadHandler))).Methods("PUT")
	apiCreate.Handle("/messages/unread", api.Middleware(http.HandlerFunc(msg.UnreadMessagesHandler))).Methods("GET")
	apiCreate.Handle("/messages/unread/count", api.Middleware(http.HandlerFunc(msg.UnreadCountHandler))).Methods("GET")
	apiCreate.Handle("/messages/{message_id}/read", api.Middleware(http.HandlerFunc(msg.MarkMessageReadHandler))).Methods("PUT")
	apiCreate.Handle("/messages/{message_id}", api.Middleware(http.HandlerFunc(msg.DeleteMessageHandler))).Methods("DELETE")

	apiCreate.Handle("/dashboard/stats", api.Middleware(http.HandlerFunc(c.DashboardStatsHandler))).Methods("GET")

	apiCreate.Handle("/storage/signature", api.Middleware(http.HandlerFunc(storage.GenerateSignature))).Methods("GET")

	r.Use(api.TimeoutMiddleware(30 * time.Second))

	return r
}

// Initialize connects to the database and builds the router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("dispute-resolution-api has connected to the database")

	a.Scheduler = scheduler.New(
		databases.NewCaseDatabase(a.dbHelper),
		databases.NewSchedulerLockDatabase(a.dbHelper),
	)
	a.Scheduler.Start()

	a.Router = a.New()
	return nil
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
