package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"saintagent/internal/browser"
	"saintagent/internal/cafeteria"
	"saintagent/internal/creds"
	"saintagent/internal/notice"
	"saintagent/internal/portal"
	"saintagent/internal/store"
)

// Portal locations for the grade observation.
const (
	gradeMenuRoot   = "학사관리"
	gradeMenuGroup  = "성적/졸업"
	gradeMenuScreen = "학기별 성적 조회"
	gpaSelector     = "#WD0147" // read-only input carrying the cumulative GPA
)

// GradeCheck observes the cumulative GPA through a scheduler-owned portal
// session. A change means new grades were posted.
func GradeCheck(client *portal.Client, sessions *browser.Store, provider creds.Provider) Task {
	return Task{
		Type: "grade_check",
		Run: func(ctx context.Context, sched store.Schedule) (string, error) {
			s := sessions.GetOrCreate(browser.SchedulerKey(sched.UserID))
			if err := sessions.Start(ctx, s); err != nil {
				return "", err
			}
			id, pw, err := provider.Lookup(sched.UserID)
			if err != nil {
				return "", err
			}
			if err := client.Login(ctx, s, id, pw); err != nil {
				return "", err
			}
			for _, title := range []string{gradeMenuRoot, gradeMenuGroup, gradeMenuScreen} {
				if err := client.SelectMenu(ctx, s, title); err != nil {
					return "", err
				}
			}
			gpa, err := client.ReadValue(ctx, s, gpaSelector)
			if err != nil {
				return "", err
			}
			gpa = strings.TrimSpace(gpa)
			if gpa == "" {
				return "", ErrNoResult
			}
			return gpa, nil
		},
		Notification: func(prev *string, current string) string {
			if prev == nil {
				return fmt.Sprintf("성적이 등록되었습니다. 현재 평점: %s", current)
			}
			return fmt.Sprintf("성적이 변경되었습니다: %s → %s", *prev, current)
		},
	}
}

// ScholarshipNoticeCheck observes the newest notice in a board category
// (default 장학). The observation is title plus link, so a re-posted notice
// with the same title still counts as a change.
func ScholarshipNoticeCheck(client *notice.Client) Task {
	return Task{
		Type: "scholarship_notice_check",
		Run: func(ctx context.Context, sched store.Schedule) (string, error) {
			params, err := decodeParams(sched.Params)
			if err != nil {
				return "", err
			}
			category := "장학"
			if c, ok := params["category"].(string); ok && c != "" {
				category = c
			}
			post, err := client.Latest(ctx, category)
			if err != nil {
				return "", err
			}
			if post == nil {
				return "", ErrNoResult
			}
			return post.Title + "\n" + post.URL, nil
		},
		Notification: func(prev *string, current string) string {
			title, link, _ := strings.Cut(current, "\n")
			return fmt.Sprintf("새 공지가 올라왔습니다: %s\n%s", title, link)
		},
	}
}

// CafeteriaMenuCheck fetches today's menu for the configured restaurant.
// Notifies on every successful run: the menu is a daily digest, not a
// change signal.
func CafeteriaMenuCheck(client *cafeteria.Client, defaultCode int) Task {
	return Task{
		Type:         "cafeteria_menu_check",
		NotifyAlways: true,
		Run: func(ctx context.Context, sched store.Schedule) (string, error) {
			params, err := decodeParams(sched.Params)
			if err != nil {
				return "", err
			}
			code := defaultCode
			if c, ok := params["restaurant_code"].(float64); ok {
				code = int(c)
			}
			day, err := client.FetchMenu(ctx, code, time.Now().Format("20060102"))
			if err != nil {
				return "", err
			}
			if len(day.Menus) == 0 {
				return "", ErrNoResult
			}
			return cafeteria.Format(day), nil
		},
		Notification: func(_ *string, current string) string {
			return current
		},
	}
}
