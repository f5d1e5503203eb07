package fetcher

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Netscape cookies.txt columns: domain, include-subdomains, path, secure, expiry, name, value.
const netscapeFields = 7

// ParseNetscapeCookies reads a cookies.txt export. Malformed lines are skipped.
func ParseNetscapeCookies(r io.Reader) ([]*http.Cookie, error) {
	scanner := bufio.NewScanner(r)
	var cookies []*http.Cookie
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			line = strings.TrimPrefix(line, "#HttpOnly_")
			httpOnly = true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < netscapeFields {
			continue
		}
		cookie := &http.Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    fields[6],
			HttpOnly: httpOnly,
		}
		if expiry, err := strconv.ParseInt(fields[4], 10, 64); err == nil && expiry > 0 {
			cookie.Expires = time.Unix(expiry, 0)
		}
		cookies = append(cookies, cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	return cookies, nil
}

// LoadCookieJar builds a jar from a cookies.txt file.
func LoadCookieJar(path string) (http.CookieJar, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	cookies, err := ParseNetscapeCookies(file)
	if err != nil {
		return nil, 0, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, 0, err
	}
	byHost := make(map[string][]*http.Cookie)
	for _, c := range cookies {
		host := strings.TrimPrefix(c.Domain, ".")
		byHost[host] = append(byHost[host], c)
	}
	for host, list := range byHost {
		jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: "/"}, list)
	}
	return jar, len(cookies), nil
}

// CookieStatus summarises a cookies file for the status endpoint.
type CookieStatus struct {
	Exists           bool   `json:"exists"`
	Path             string `json:"path,omitempty"`
	LastModified     string `json:"lastModified,omitempty"`
	LastModifiedTs   int64  `json:"lastModifiedTs,omitempty"`
	CookieCount      int    `json:"cookieCount"`
	EarliestExpiry   string `json:"earliestExpiry,omitempty"`
	EarliestExpiryTs int64  `json:"earliestExpiryTs,omitempty"`
	DaysUntilExpiry  int    `json:"daysUntilExpiry"`
	Status           string `json:"status"` // valid, expiring_soon, expired, not_found, not_configured
	StatusMsg        string `json:"statusMsg"`
}

func InspectCookies(path string, now time.Time) (CookieStatus, error) {
	if strings.TrimSpace(path) == "" {
		return CookieStatus{Status: "not_configured", StatusMsg: "No cookies file configured", DaysUntilExpiry: -1}, nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return CookieStatus{Path: path, Status: "not_found", StatusMsg: "Cookie file not found", DaysUntilExpiry: -1}, nil
	}
	if err != nil {
		return CookieStatus{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return CookieStatus{}, err
	}
	defer file.Close()
	cookies, err := ParseNetscapeCookies(file)
	if err != nil {
		return CookieStatus{}, err
	}

	status := CookieStatus{
		Exists:         true,
		Path:           path,
		LastModified:   info.ModTime().Format("2006-01-02 15:04:05"),
		LastModifiedTs: info.ModTime().Unix(),
		CookieCount:    len(cookies),
	}

	var earliest time.Time
	for _, c := range cookies {
		if c.Expires.IsZero() {
			continue
		}
		if earliest.IsZero() || c.Expires.Before(earliest) {
			earliest = c.Expires
		}
	}

	if earliest.IsZero() {
		status.DaysUntilExpiry = -1
		age := int(now.Sub(info.ModTime()).Hours() / 24)
		if age > 30 {
			status.Status = "expiring_soon"
			status.StatusMsg = fmt.Sprintf("Cookie file not updated for %d days", age)
		} else {
			status.Status = "valid"
			status.StatusMsg = "Cookie file exists"
		}
		return status, nil
	}

	status.EarliestExpiry = earliest.Format("2006-01-02 15:04:05")
	status.EarliestExpiryTs = earliest.Unix()
	days := int(earliest.Sub(now).Hours() / 24)
	status.DaysUntilExpiry = days
	switch {
	case earliest.Before(now):
		status.Status = "expired"
		status.StatusMsg = fmt.Sprintf("Cookie expired %d days ago", -days)
	case days < 7:
		status.Status = "expiring_soon"
		status.StatusMsg = fmt.Sprintf("Cookie expires in %d days", days)
	default:
		status.Status = "valid"
		status.StatusMsg = fmt.Sprintf("Cookie valid, expires in %d days", days)
	}
	return status, nil
}
