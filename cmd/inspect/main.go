package main

import (
	"flag"
	"fmt"
	"job-chat/domain/chat"
	"job-chat/repositories"
	"log"
	"os"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/chat"`
	// INSPECT_COLOURS enables colorized headers
	Colours bool `envconfig:"INSPECT_COLOURS" default:"true"`
}

// inspect prints the conversations stored in a badger message log, or the
// messages of one conversation with -room room_<companyId>_<studentId>.
// The database is opened read-only so it can run next to the server.
func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	room := flag.String("room", "", "Conversation to print, e.g. room_C1_S1")
	flag.Parse()
	color.Enable = config.Colours

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if *room == "" {
		err = printConversations(db)
	} else {
		err = printConversation(db, *room)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func printConversations(db *badger.DB) error {
	summaries, err := repositories.ListConversations(db)
	if err != nil {
		return err
	}
	color.New(color.BgBlack, color.FgGreen).Printf(" %d conversations \n", len(summaries))

	table := newTable("Room", "Company", "Student", "Messages", "Last ID")
	for _, s := range summaries {
		table.Append([]string{
			s.Key.String(),
			s.Key.CompanyID,
			s.Key.StudentID,
			strconv.Itoa(s.Messages),
			strconv.FormatUint(s.LastID, 10),
		})
	}
	table.Render()
	return nil
}

func printConversation(db *badger.DB, room string) error {
	key, err := chat.ParseKey(room)
	if err != nil {
		return err
	}
	messages, err := repositories.ReadConversation(db, key)
	if err != nil {
		return err
	}
	color.New(color.BgBlack, color.FgGreen).Printf(" %s: %d messages \n", key, len(messages))

	table := newTable("ID", "At", "Sender", "Message")
	for _, m := range messages {
		sender := m.Sender.String()
		if m.Sender == chat.SenderCompany {
			sender = color.FgCyan.Render(sender)
		} else {
			sender = color.FgYellow.Render(sender)
		}
		table.Append([]string{
			strconv.FormatUint(m.ID, 10),
			m.CreatedAt.Format("2006-01-02 15:04:05"),
			sender,
			m.Body,
		})
	}
	table.Render()
	fmt.Println()
	return nil
}
