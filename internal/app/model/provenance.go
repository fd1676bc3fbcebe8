package model

import (
	"regexp"
	"strings"
)

const splitMarkerText = "split from original order"

var (
	splitMarkerPattern  = regexp.MustCompile(`(?i)split from original order\s+#?([A-Za-z0-9_\-]+)`)
	returnReasonPattern = regexp.MustCompile(`(?i)return reason:[ \t]*([^\r\n]*)`)
)

// SplitMarker 레거시 리더를 위한 order_details 마커
func SplitMarker(ref string) string {
	return splitMarkerText + " " + ref
}

// ParseSplitMarker order_details에서 원 주문 참조(code 또는 id)를 추출
func ParseSplitMarker(details string) (string, bool) {
	m := splitMarkerPattern.FindStringSubmatch(details)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseReturnReason "Return reason: <text>" 마커 파싱
func ParseReturnReason(details string) (string, bool) {
	m := returnReasonPattern.FindStringSubmatch(details)
	if m == nil {
		return "", false
	}
	reason := strings.TrimSpace(m[1])
	return reason, reason != ""
}

// AppendDetail 기존 메모를 보존하고 줄 단위로 추가
func AppendDetail(details, line string) string {
	details = strings.TrimRight(details, "\n ")
	if details == "" {
		return line
	}
	return details + "\n" + line
}
