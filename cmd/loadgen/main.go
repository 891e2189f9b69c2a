// Command loadgen posts synthetic game-server telemetry to a running
// engine: kill streams with round lifecycle, presence churn, and the
// occasional map change, then reads back the leaderboard.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fragworks/fragstats/internal/domain/event"
)

const (
	defaultNumEvents = 10000
	defaultWorkers   = 8
	defaultServers   = 4
	defaultPlayers   = 64
	defaultTimeout   = 30 * time.Second
	defaultTopN      = 20
	runTimeout       = 10 * time.Minute
)

var weapons = []string{
	"weapon_ak47", "weapon_m4a1", "weapon_awp", "weapon_deagle",
	"weapon_glock", "weapon_usp_silencer", "weapon_knife",
}

var teams = []string{"T", "CT"}

type counters struct {
	accepted   atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the engine")
		numEvents = flag.Int("events", defaultNumEvents, "Number of events to generate and submit")
		workers   = flag.Int("workers", defaultWorkers, "Number of concurrent submitters")
		servers   = flag.Int("servers", defaultServers, "Number of simulated game servers")
		players   = flag.Int("players", defaultPlayers, "Number of simulated players")
		topN      = flag.Int("top", defaultTopN, "Leaderboard entries to fetch afterwards")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	client := &http.Client{Timeout: *timeout}

	events := make(chan event.Event, *workers)
	go func() {
		defer close(events)
		for i := 0; i < *numEvents; i++ {
			select {
			case events <- generate(*servers, *players):
			case <-ctx.Done():
				return
			}
		}
	}()

	var c counters
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range events {
				submit(ctx, client, *baseURL, e, &c)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("submitted %d events in %s (%.0f/s): %d accepted, %d duplicates, %d failed\n",
		*numEvents, elapsed.Round(time.Millisecond),
		float64(*numEvents)/elapsed.Seconds(),
		c.accepted.Load(), c.duplicates.Load(), c.failed.Load())

	printLeaderboard(ctx, client, *baseURL, *topN)
}

// generate produces a weighted mix of event types across the simulated
// servers and players.
func generate(servers, players int) event.Event {
	serverID := fmt.Sprintf("srv-%d", rand.IntN(servers)+1)
	killer := fmt.Sprintf("player-%d", rand.IntN(players)+1)
	victim := fmt.Sprintf("player-%d", rand.IntN(players)+1)
	for victim == killer {
		victim = fmt.Sprintf("player-%d", rand.IntN(players)+1)
	}

	switch roll := rand.IntN(100); {
	case roll < 60:
		killerTeam := teams[rand.IntN(len(teams))]
		victimTeam := teams[rand.IntN(len(teams))]
		return event.NewKill(serverID, event.KillPayload{
			KillerID:   killer,
			VictimID:   victim,
			Weapon:     weapons[rand.IntN(len(weapons))],
			Headshot:   rand.IntN(100) < 30,
			KillerTeam: killerTeam,
			VictimTeam: victimTeam,
		})
	case roll < 65:
		return event.NewSuicide(serverID, event.SuicidePayload{PlayerID: killer})
	case roll < 75:
		e := event.New(event.TypePlayerConnect, serverID)
		e.Connect = &event.ConnectPayload{PlayerID: killer}
		return e
	case roll < 80:
		e := event.New(event.TypePlayerDisconnect, serverID)
		e.Disconnect = &event.DisconnectPayload{PlayerID: killer}
		return e
	case roll < 88:
		e := event.New(event.TypeRoundStart, serverID)
		e.RoundStart = &event.RoundStartPayload{}
		return e
	case roll < 94:
		e := event.New(event.TypeRoundEnd, serverID)
		e.RoundEnd = &event.RoundEndPayload{WinningTeam: teams[rand.IntN(len(teams))]}
		return e
	case roll < 98:
		e := event.New(event.TypeTeamWin, serverID)
		e.TeamWin = &event.TeamWinPayload{Team: teams[rand.IntN(len(teams))]}
		return e
	default:
		e := event.New(event.TypeMapChange, serverID)
		e.MapChange = &event.MapChangePayload{NewMap: fmt.Sprintf("de_map%d", rand.IntN(8))}
		return e
	}
}

func submit(ctx context.Context, client *http.Client, baseURL string, e event.Event, c *counters) {
	body, err := e.Encode()
	if err != nil {
		c.failed.Add(1)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		c.failed.Add(1)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		c.failed.Add(1)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusAccepted:
		c.accepted.Add(1)
	case http.StatusOK:
		c.duplicates.Add(1)
	default:
		c.failed.Add(1)
	}
}

func printLeaderboard(ctx context.Context, client *http.Client, baseURL string, topN int) {
	url := fmt.Sprintf("%s/leaderboard?limit=%d", baseURL, topN)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		os.Stderr.WriteString("leaderboard request failed: " + err.Error() + "\n")
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		os.Stderr.WriteString("leaderboard fetch failed: " + err.Error() + "\n")
		return
	}
	defer resp.Body.Close()

	var entries []struct {
		Rank        int    `json:"Rank"`
		PlayerID    string `json:"PlayerID"`
		Rating      int    `json:"Rating"`
		GamesPlayed int    `json:"GamesPlayed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		os.Stderr.WriteString("leaderboard decode failed: " + err.Error() + "\n")
		return
	}

	fmt.Println("leaderboard:")
	for _, e := range entries {
		fmt.Printf("  %3d. %-16s rating=%d games=%d\n", e.Rank, e.PlayerID, e.Rating, e.GamesPlayed)
	}
}
