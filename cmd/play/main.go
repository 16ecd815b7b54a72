// cmd/play/main.go
//
// Terminal client for memorymatch. Hosts the game engine locally and talks
// to the score service for accounts, score submission, and the leaderboard.
// Score submission is fire-and-forget: a network failure is logged and the
// game returns to the menu regardless.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"memorymatch/internal/game"
	"memorymatch/internal/gameclient"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "warn")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	client := gameclient.New(getEnv("SERVER_URL", "http://localhost:8080"))
	reader := bufio.NewReader(os.Stdin)
	userID := ""

	for {
		fmt.Println()
		fmt.Println("1 - Login")
		fmt.Println("2 - Register")
		fmt.Println("3 - Play")
		fmt.Println("4 - Leaderboard")
		fmt.Println("5 - Quit")
		fmt.Print("> ")

		switch readLine(reader) {
		case "1":
			username, password := promptCredentials(reader)
			id, err := client.Login(context.Background(), username, password)
			if err != nil {
				fmt.Println("Login failed:", err)
				continue
			}
			userID = id
			fmt.Println("Logged in.")
		case "2":
			username, password := promptCredentials(reader)
			if err := client.Register(context.Background(), username, password); err != nil {
				fmt.Println("Registration failed:", err)
				continue
			}
			fmt.Println("Account created. You can log in now.")
		case "3":
			if userID == "" {
				fmt.Println("(playing as guest: the score will not be saved)")
			}
			play(reader, client, userID)
		case "4":
			showLeaderboard(client)
		case "5":
			return
		default:
			fmt.Println("Unknown option")
		}
	}
}

// play runs one game session from start to a terminal state or quit.
func play(reader *bufio.Reader, client *gameclient.Client, userID string) {
	sink := game.SinkFunc(func(res game.Result) {
		if userID == "" {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.SaveScore(ctx, userID, res.Matches, res.TimeLeft); err != nil {
				log.Warn().Err(err).Msg("save score")
			}
		}()
	})

	sess, err := game.NewSession(game.Config{Sink: sink})
	if err != nil {
		fmt.Println("Cannot start game:", err)
		return
	}
	runner := game.NewRunner(sess, 0)
	defer runner.Close()

	if err := runner.Start(); err != nil {
		fmt.Println("Cannot start game:", err)
		return
	}
	fmt.Println("Match all pairs before the timer runs out.")
	fmt.Println("Enter a card number, p to pause, r to resume, q to quit.")

	for {
		v := runner.View()
		switch v.State {
		case game.StateWon:
			fmt.Printf("You won with %d seconds left!\n", v.Remaining)
			showLeaderboard(client)
			return
		case game.StateLost:
			fmt.Printf("Time's up. Pairs found: %d of %d.\n", len(v.Matched), v.PairCount)
			showLeaderboard(client)
			return
		}

		render(v)
		fmt.Print("> ")
		input := readLine(reader)
		switch input {
		case "q":
			return
		case "p":
			if err := runner.Pause(); err != nil {
				fmt.Println(err)
			}
		case "r":
			if err := runner.Resume(); err != nil {
				fmt.Println(err)
			}
		case "":
			// refresh
		default:
			i, err := strconv.Atoi(input)
			if err != nil {
				fmt.Println("Unknown input")
				continue
			}
			if _, err := runner.Select(i - 1); err != nil {
				fmt.Println(err)
			}
		}
	}
}

// render prints the grid four cards per row. Matched and face-up cards show
// their symbol; the rest show their number.
func render(v game.View) {
	fmt.Printf("\nTime left: %ds   Pairs: %d/%d\n", v.Remaining, len(v.Matched), v.PairCount)
	faceUp := make(map[int]bool, len(v.Selected))
	for _, i := range v.Selected {
		faceUp[i] = true
	}
	for i, c := range v.Grid {
		cell := fmt.Sprintf("%2d", i+1)
		if v.Matched[c.Symbol] || faceUp[i] {
			cell = fmt.Sprintf(" %c", c.Symbol)
		}
		fmt.Printf("[%s]", cell)
		if (i+1)%4 == 0 {
			fmt.Println()
		}
	}
	fmt.Println()
}

func showLeaderboard(client *gameclient.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	entries, err := client.Leaderboard(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("fetch leaderboard")
		fmt.Println("Leaderboard unavailable.")
		return
	}
	if len(entries) == 0 {
		fmt.Println("No scores yet.")
		return
	}
	fmt.Println("Rank  Player            Score  Time left")
	for _, e := range entries {
		fmt.Printf("%4d  %-16s  %5d  %9d\n", e.Rank, e.Player, e.Score, e.TimeLeft)
	}
}

func promptCredentials(reader *bufio.Reader) (string, string) {
	fmt.Print("Username: ")
	username := readLine(reader)
	fmt.Print("Password: ")
	password := readLine(reader)
	return username, password
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
