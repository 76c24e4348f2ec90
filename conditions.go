package custos

import (
	"fmt"
	"net"
	"time"
)

// Grant conditions are a structured map evaluated deterministically on
// the authorization path. Recognized keys:
//
//	"allowed_ips"   []string of CIDR blocks; the caller's source IP must
//	                fall inside one of them.
//	"allowed_hours" map with "from" and "to" in "HH:MM"; the check must
//	                happen inside the daily window.
//	"valid_from"    RFC3339 timestamp; the check must happen at or after it.
//	"valid_until"   RFC3339 timestamp; the check must happen before it.
//
// Unknown keys fail closed: a grant carrying a condition the engine
// does not understand never authorizes.
func evaluateConditions(conditions map[string]any, info ClientInfo, now time.Time) bool {
	for key, val := range conditions {
		ok, err := evaluateCondition(key, val, info, now)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

func evaluateCondition(key string, val any, info ClientInfo, now time.Time) (bool, error) {
	switch key {
	case "allowed_ips":
		return ipInCIDRs(info.SourceIP, val), nil
	case "allowed_hours":
		return inDailyWindow(val, now)
	case "valid_from":
		from, ok := parseTime(val)
		if !ok {
			return false, fmt.Errorf("custos: condition valid_from: bad timestamp %v", val)
		}
		return !now.Before(from), nil
	case "valid_until":
		until, ok := parseTime(val)
		if !ok {
			return false, fmt.Errorf("custos: condition valid_until: bad timestamp %v", val)
		}
		return now.Before(until), nil
	default:
		return false, fmt.Errorf("custos: unknown condition %q", key)
	}
}

func ipInCIDRs(ipStr string, cidrVal any) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	var cidrs []string
	switch v := cidrVal.(type) {
	case string:
		cidrs = []string{v}
	case []string:
		cidrs = v
	case []any:
		for _, item := range v {
			cidrs = append(cidrs, fmt.Sprint(item))
		}
	default:
		return false
	}

	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func inDailyWindow(val any, now time.Time) (bool, error) {
	window, ok := val.(map[string]any)
	if !ok {
		return false, fmt.Errorf("custos: condition allowed_hours: want object, got %T", val)
	}

	from, err := parseClock(window["from"])
	if err != nil {
		return false, err
	}
	to, err := parseClock(window["to"])
	if err != nil {
		return false, err
	}

	minute := now.Hour()*60 + now.Minute()
	if from <= to {
		return minute >= from && minute < to, nil
	}
	// Window wraps midnight.
	return minute >= from || minute < to, nil
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(v any) (int, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("custos: condition allowed_hours: want \"HH:MM\", got %v", v)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("custos: condition allowed_hours: %w", err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}
