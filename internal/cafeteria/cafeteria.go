// Package cafeteria fetches and parses daily menus from the campus
// cafeteria site. Menus change at most daily, so results are cached
// in memory for an hour.
package cafeteria

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"saintagent/internal/logging"
)

// Restaurant codes as the menu site assigns them. Code 3 does not exist.
var RestaurantNames = map[int]string{
	1: "학생식당",
	2: "숭실도담식당",
	4: "스넥코너",
	5: "푸드코트",
	6: "THE KITCHEN",
	7: "FACULTY LOUNGE",
}

const defaultBaseURL = "https://soongguri.com/m/m_req/m_menu.php"

// Menu is one corner's offering for the day.
type Menu struct {
	Category   string
	MainDish   string
	Rating     string
	SideDishes []string
	Allergens  string
	Origin     string
}

// DayMenu is everything one restaurant serves on one date.
type DayMenu struct {
	RestaurantCode int
	RestaurantName string
	Date           string // YYYYMMDD
	Menus          []Menu
}

type cacheEntry struct {
	data      *DayMenu
	expiresAt time.Time
}

// Client fetches menus with caching.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cacheTTL   time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewClient creates a cafeteria client with a 1 hour cache.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		cacheTTL:   time.Hour,
		cache:      make(map[string]cacheEntry),
	}
}

// FetchMenu returns the menu for one restaurant and date (YYYYMMDD).
func (c *Client) FetchMenu(ctx context.Context, code int, date string) (*DayMenu, error) {
	name, ok := RestaurantNames[code]
	if !ok {
		return nil, fmt.Errorf("invalid restaurant code %d (valid: 1, 2, 4, 5, 6, 7)", code)
	}

	key := fmt.Sprintf("%d_%s", code, date)
	c.mu.Lock()
	if entry, ok := c.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		c.mu.Unlock()
		logging.FetchDebug("cafeteria cache hit %s", key)
		return entry.data, nil
	}
	c.mu.Unlock()

	url := fmt.Sprintf("%s?rcd=%d&sdt=%s", c.baseURL, code, date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build menu request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch menu: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch menu: unexpected status %d", resp.StatusCode)
	}

	menus, err := parseMenus(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse menu page: %w", err)
	}

	day := &DayMenu{
		RestaurantCode: code,
		RestaurantName: name,
		Date:           date,
		Menus:          menus,
	}

	c.mu.Lock()
	c.cache[key] = cacheEntry{data: day, expiresAt: time.Now().Add(c.cacheTTL)}
	c.mu.Unlock()

	logging.Fetch("fetched cafeteria menu %s (%d corners)", key, len(menus))
	return day, nil
}

// FormatDate converts YYYYMMDD into YYYY-MM-DD for display.
func FormatDate(date string) string {
	if len(date) != 8 {
		return date
	}
	return date[:4] + "-" + date[4:6] + "-" + date[6:]
}
