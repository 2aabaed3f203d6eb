package isapi

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"hikfetch/internal/timewindow"
)

const (
	metadataDescriptor = "//recordType.meta.std-cgi.com"
	maxErrorBody       = 64 << 10
)

var namespacePattern = regexp.MustCompile(` xmlns="[^"]+"`)

// MediaKind selects which recording track is searched.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaPhoto MediaKind = "photo"
)

// ParseMediaKind accepts "video", "photo", or empty for video.
func ParseMediaKind(value string) (MediaKind, error) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(value))) {
	case "", MediaVideo:
		return MediaVideo, nil
	case MediaPhoto:
		return MediaPhoto, nil
	default:
		return "", fmt.Errorf("unsupported media kind %q", value)
	}
}

// TrackID returns the device track for a channel: channel*100+1 for video
// and channel*100+3 for photos.
func (k MediaKind) TrackID(channel int) int {
	if channel < 1 {
		channel = 1
	}
	if k == MediaPhoto {
		return channel*100 + 3
	}
	return channel*100 + 1
}

// Extension is the file suffix used for archived media of this kind.
func (k MediaKind) Extension() string {
	if k == MediaPhoto {
		return ".jpg"
	}
	return ".mp4"
}

// Response is a raw device answer.
type Response struct {
	StatusCode int
	Status     string
	Body       []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool {
	return isSuccess(r.StatusCode)
}

// Segment is one playable recording on the device.
type Segment struct {
	PlaybackURI string
	Window      timewindow.Window
}

// NewSegment derives the recording window from the starttime and endtime
// parameters of a playback URI.
func NewSegment(playbackURI string, offset time.Duration) (Segment, error) {
	playbackURI = strings.TrimSpace(playbackURI)
	parsed, err := url.Parse(playbackURI)
	if err != nil {
		return Segment{}, fmt.Errorf("parse playback uri: %w", err)
	}
	query := parsed.Query()
	start := firstParam(query, "starttime", "startTime")
	end := firstParam(query, "endtime", "endTime")
	if start == "" || end == "" {
		return Segment{}, fmt.Errorf("playback uri %q lacks start or end time", playbackURI)
	}
	window, err := timewindow.FromStamps(start, end, offset)
	if err != nil {
		return Segment{}, fmt.Errorf("playback uri %q: %w", playbackURI, err)
	}
	return Segment{PlaybackURI: playbackURI, Window: window}, nil
}

func firstParam(values url.Values, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

// FileName names the archived file for this segment.
func (s Segment) FileName(kind MediaKind) string {
	return s.Window.FileName() + kind.Extension()
}

// SearchRequest describes one page of a recording search.
type SearchRequest struct {
	Window     timewindow.Window
	MaxResults int
	TrackID    int
}

type searchDescription struct {
	XMLName              xml.Name   `xml:"CMSearchDescription"`
	SearchID             string     `xml:"searchID"`
	TrackIDs             []int      `xml:"trackIDList>trackID"`
	TimeSpans            []timeSpan `xml:"timeSpanList>timeSpan"`
	MaxResults           int        `xml:"maxResults"`
	SearchResultPosition int        `xml:"searchResultPostion"`
	Metadata             []string   `xml:"metadataList>metadataDescriptor"`
}

type timeSpan struct {
	StartTime string `xml:"startTime"`
	EndTime   string `xml:"endTime"`
}

// BuildSearchRequest renders the CMSearchDescription document for req.
func BuildSearchRequest(req SearchRequest) ([]byte, error) {
	start, end := req.Window.DeviceText()
	doc := searchDescription{
		SearchID:   strings.ToUpper(uuid.NewString()),
		TrackIDs:   []int{req.TrackID},
		TimeSpans:  []timeSpan{{StartTime: start, EndTime: end}},
		MaxResults: req.MaxResults,
		Metadata:   []string{metadataDescriptor},
	}
	return marshalDocument(doc)
}

type downloadRequest struct {
	XMLName     xml.Name `xml:"downloadRequest"`
	PlaybackURI string   `xml:"playbackURI"`
}

// BuildDownloadRequest renders the downloadRequest document for uri.
func BuildDownloadRequest(playbackURI string) ([]byte, error) {
	return marshalDocument(downloadRequest{PlaybackURI: playbackURI})
}

func marshalDocument(doc any) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

type searchResult struct {
	MatchList *struct {
		Items []struct {
			Descriptor struct {
				PlaybackURI string `xml:"playbackURI"`
			} `xml:"mediaSegmentDescriptor"`
		} `xml:"searchMatchItem"`
	} `xml:"matchList"`
}

// ParseSegments extracts the segments listed in a search response. A
// response without a matchList element is the device's "no matches" answer
// and yields an empty slice.
func ParseSegments(body []byte, offset time.Duration) ([]Segment, error) {
	var result searchResult
	if err := xml.Unmarshal(StripNamespaces(body), &result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if result.MatchList == nil {
		return []Segment{}, nil
	}
	segments := make([]Segment, 0, len(result.MatchList.Items))
	for _, item := range result.MatchList.Items {
		uri := strings.TrimSpace(item.Descriptor.PlaybackURI)
		if uri == "" {
			continue
		}
		segment, err := NewSegment(uri, offset)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment)
	}
	return segments, nil
}

type statusDocument struct {
	StatusString  *string `xml:"statusString"`
	SubStatusCode *string `xml:"subStatusCode"`
}

// ErrorMessage describes a failed response using the statusString and
// subStatusCode elements when the device sent them, or the raw body.
func ErrorMessage(resp Response) string {
	body := StripNamespaces(resp.Body)
	var doc statusDocument
	if err := xml.Unmarshal(body, &doc); err == nil && doc.StatusString != nil && doc.SubStatusCode != nil {
		return fmt.Sprintf("Error %s: %s - %s", statusLine(resp), strings.TrimSpace(*doc.StatusString), strings.TrimSpace(*doc.SubStatusCode))
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return "Error " + statusLine(resp)
}

func statusLine(resp Response) string {
	if status := strings.TrimSpace(resp.Status); status != "" {
		return status
	}
	return strconv.Itoa(resp.StatusCode) + " " + http.StatusText(resp.StatusCode)
}

// StripNamespaces removes default namespace declarations. Devices disagree on
// namespacing, so lookups work on bare element names.
func StripNamespaces(body []byte) []byte {
	return namespacePattern.ReplaceAll(bytes.TrimSpace(body), nil)
}

type timeDocument struct {
	TimeZone string `xml:"timeZone"`
}

var zonePattern = regexp.MustCompile(`([+-]?)(\d{1,2})(?::(\d{1,2}))?(?::(\d{1,2}))?`)

// ParseTimeZone converts a POSIX style zone such as "CST-8:00:00" into the
// offset of local time from UTC (+8h for that example). POSIX zones count
// west of Greenwich as positive, hence the sign flip.
func ParseTimeZone(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	name := strings.TrimLeftFunc(raw, func(r rune) bool {
		return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
	})
	if name == "" {
		if raw == "" {
			return 0, fmt.Errorf("empty time zone")
		}
		return 0, nil
	}
	m := zonePattern.FindStringSubmatch(name)
	if m == nil || !strings.HasPrefix(name, m[0]) {
		return 0, fmt.Errorf("unrecognized time zone %q", raw)
	}
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	seconds, _ := strconv.Atoi(m[4])
	offset := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	if m[1] == "-" {
		return offset, nil
	}
	return -offset, nil
}
