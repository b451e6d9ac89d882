// Command seed fills the orders database with demo orders and vendors and
// prints a token per participant, ready for CHAT_TOKEN.
//
//	seed -order 1001 -vendor vendor-a:"Parts & Co" -vendor vendor-b:"Spares Ltd" -customer customer-1
package main

import (
	"context"
	"flag"
	"fmt"
	"order-chat/auth"
	"order-chat/domain/chat"
	"order-chat/infrastructure/orders"
	"order-chat/internal"
	"os"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

type listFlag []string

func (l *listFlag) String() string     { return strings.Join(*l, ",") }
func (l *listFlag) Set(v string) error { *l = append(*l, v); return nil }

func main() {
	if err := run(); err != nil {
		color.Error.Printf("Seed failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var orderIDs, vendors listFlag
	flag.Var(&orderIDs, "order", "Order id, repeatable")
	flag.Var(&vendors, "vendor", "Vendor as id:name, repeatable")
	customer := flag.String("customer", "customer-1", "Customer user id")
	flag.Parse()

	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	service, err := orders.Open(config.OrdersDSN, logger)
	if err != nil {
		return err
	}
	ctx := context.Background()
	for _, id := range orderIDs {
		if err := service.SaveOrder(ctx, chat.OrderID(id)); err != nil {
			return err
		}
	}

	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"User", "Role", "Token"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	for _, v := range vendors {
		id, name, _ := strings.Cut(v, ":")
		if err := service.SaveCounterparty(ctx, chat.CounterpartyID(id), name); err != nil {
			return err
		}
		token, err := tokens.GenerateToken(id, []string{"vendor"})
		if err != nil {
			return err
		}
		table.Append([]string{id, "vendor", token})
	}
	token, err := tokens.GenerateToken(*customer, []string{"customer"})
	if err != nil {
		return err
	}
	table.Append([]string{*customer, "customer", token})

	color.Info.Printf("Seeded %d orders and %d vendors into %s\n", len(orderIDs), len(vendors), config.OrdersDSN)
	table.Render()
	return nil
}
