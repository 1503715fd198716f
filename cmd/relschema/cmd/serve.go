package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/graphql-go/graphql"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/relschema-eu/relschema/dialect"
	"github.com/relschema-eu/relschema/entity"
	"github.com/relschema-eu/relschema/executor"
	"github.com/relschema-eu/relschema/executor/memexec"
	"github.com/relschema-eu/relschema/executor/sqlexec"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the compiled GraphQL API over HTTP",
	Long: `Serve the compiled GraphQL schema on POST /graphql.

Without --dsn, an in-memory executor seeded with the demo schema is used, so
the API is fully functional with no database at hand.

Examples:
  relschema serve
  relschema serve --dialect sqlite --dsn file:demo.db
  relschema serve --dialect postgres --dsn postgres://localhost/demo`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("listen", ":8080", "address to listen on")
	serveCmd.Flags().String("dialect", "postgres", "database dialect: postgres, mysql, sqlite")
	serveCmd.Flags().String("dsn", "", "database DSN; empty serves the in-memory demo")
	_ = viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
	_ = viper.BindPFlag("dialect", serveCmd.Flags().Lookup("dialect"))
	_ = viper.BindPFlag("dsn", serveCmd.Flags().Lookup("dsn"))
}

// graphqlRequest and graphqlResponse mirror the standard GraphQL-over-HTTP
// POST body and response envelope.
type graphqlRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

type graphqlResponse struct {
	Data   interface{}    `json:"data,omitempty"`
	Errors []graphqlError `json:"errors,omitempty"`
}

type graphqlError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

func runServe(cmd *cobra.Command, args []string) error {
	d, ok := dialect.ByName(dialect.Name(viper.GetString("dialect")))
	if !ok {
		return fmt.Errorf("unknown dialect %q", viper.GetString("dialect"))
	}

	tables, seed := demoSchema(d)

	var exec executor.Executor
	if dsn := viper.GetString("dsn"); dsn != "" {
		db, err := sqlexec.Open(d, tables, dsn)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		exec = db
		log.Info().Str("dialect", string(d.Name)).Msg("Using SQL executor")
	} else {
		exec = memexec.New(tables, seed)
		log.Info().Str("dialect", string(d.Name)).Msg("Using in-memory demo executor")
	}

	gqlSchema, bundle, err := entity.Build(exec, tables, entity.Options{Dialect: d})
	if err != nil {
		return fmt.Errorf("schema compilation failed: %w", err)
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Post("/graphql", func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := uuid.NewString()

		var req graphqlRequest
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(graphqlResponse{
				Errors: []graphqlError{{Message: "Invalid JSON in request body"}},
			})
		}
		if req.Query == "" {
			return c.Status(fiber.StatusBadRequest).JSON(graphqlResponse{
				Errors: []graphqlError{{Message: "Query string is required"}},
			})
		}

		result := graphql.Do(graphql.Params{
			Schema:         *gqlSchema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			RootObject:     bundle.RootObject(),
			Context:        c.UserContext(),
		})

		log.Debug().
			Str("request_id", requestID).
			Str("operation", req.OperationName).
			Int("errors", len(result.Errors)).
			Dur("duration", time.Since(start)).
			Msg("GraphQL request executed")

		return c.JSON(toResponse(result))
	})

	listen := viper.GetString("listen")
	log.Info().Str("listen", listen).Msg("Serving GraphQL API")
	return app.Listen(listen)
}

func toResponse(result *graphql.Result) graphqlResponse {
	resp := graphqlResponse{Data: result.Data}
	for _, err := range result.Errors {
		resp.Errors = append(resp.Errors, graphqlError{
			Message:    err.Message,
			Path:       err.Path,
			Extensions: err.Extensions,
		})
	}
	return resp
}
