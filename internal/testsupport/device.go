package testsupport

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	deviceLayout = "2006-01-02T15:04:05Z"
	stampLayout  = "20060102T150405Z"
	deviceRealm  = "fake-nvr"
	deviceNonce  = "4e6f6e63652d666f722d7465737473"
)

// Clip is a recording held by a FakeDevice, in device-local wall time.
type Clip struct {
	Start time.Time
	End   time.Time
	Track int
}

// Clips returns count back-to-back clips of the given length starting at start.
func Clips(start time.Time, count int, length time.Duration, track int) []Clip {
	out := make([]Clip, 0, count)
	for i := 0; i < count; i++ {
		s := start.Add(time.Duration(i) * length)
		out = append(out, Clip{Start: s, End: s.Add(length), Track: track})
	}
	return out
}

// DeviceOption customizes a FakeDevice.
type DeviceOption func(*FakeDevice)

// WithDigestAuth makes the device reject Basic credentials and require Digest.
func WithDigestAuth() DeviceOption {
	return func(d *FakeDevice) { d.digest = true }
}

// WithDeviceCredentials overrides the accepted username and password.
func WithDeviceCredentials(username, password string) DeviceOption {
	return func(d *FakeDevice) {
		d.Username = username
		d.Password = password
	}
}

// WithTimeZone sets the POSIX zone reported by the clock endpoint.
func WithTimeZone(zone string) DeviceOption {
	return func(d *FakeDevice) { d.timeZone = zone }
}

// WithClips loads recordings into the device.
func WithClips(clips ...Clip) DeviceOption {
	return func(d *FakeDevice) { d.clips = append(d.clips, clips...) }
}

// WithDownloadFailures makes the first n download attempts of every clip
// answer HTTP 500.
func WithDownloadFailures(n int) DeviceOption {
	return func(d *FakeDevice) { d.downloadFailures = n }
}

// WithSearchFailure makes every search answer HTTP 500.
func WithSearchFailure() DeviceOption {
	return func(d *FakeDevice) { d.searchFailure = true }
}

// WithPayload sets the bytes served for every download.
func WithPayload(payload []byte) DeviceOption {
	return func(d *FakeDevice) { d.payload = payload }
}

// WithLatency delays every handled request.
func WithLatency(delay time.Duration) DeviceOption {
	return func(d *FakeDevice) { d.latency = delay }
}

// WithHeldDownloads makes downloads pause after the first chunk until
// Release is called.
func WithHeldDownloads() DeviceOption {
	return func(d *FakeDevice) { d.hold = make(chan struct{}) }
}

// FakeDevice is an httptest server speaking enough of the recorder protocol
// for pipeline tests.
type FakeDevice struct {
	URL      string
	Username string
	Password string

	server *httptest.Server

	digest           bool
	timeZone         string
	clips            []Clip
	payload          []byte
	latency          time.Duration
	downloadFailures int
	searchFailure    bool
	hold             chan struct{}
	releaseOnce      sync.Once
	started          chan string

	mu          sync.Mutex
	attempts    map[string]int
	requests    int
	searches    int
	downloads   int
	inflight    int
	maxInflight int
}

// NewFakeDevice starts a device that is closed when the test ends.
func NewFakeDevice(t testing.TB, opts ...DeviceOption) *FakeDevice {
	t.Helper()
	d := &FakeDevice{
		Username: "admin",
		Password: "secret",
		timeZone: "CST+0:00:00",
		payload:  []byte(strings.Repeat("frame", 4096)),
		attempts: make(map[string]int),
		started:  make(chan string, 64),
	}
	for _, opt := range opts {
		opt(d)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ISAPI/System/time", d.handleTime)
	mux.HandleFunc("/ISAPI/ContentMgmt/search", d.handleSearch)
	mux.HandleFunc("/ISAPI/ContentMgmt/download", d.handleDownload)
	d.server = httptest.NewServer(d.track(mux))
	d.URL = d.server.URL
	t.Cleanup(func() {
		d.Release()
		d.server.Close()
	})
	return d
}

// Release lets held downloads finish.
func (d *FakeDevice) Release() {
	if d.hold == nil {
		return
	}
	d.releaseOnce.Do(func() { close(d.hold) })
}

// DownloadStarted receives the playback URI of every download that began
// streaming.
func (d *FakeDevice) DownloadStarted() <-chan string {
	return d.started
}

// Searches returns the number of authorized search requests served.
func (d *FakeDevice) Searches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.searches
}

// Downloads returns the number of authorized download attempts.
func (d *FakeDevice) Downloads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.downloads
}

// MaxInFlight returns the highest number of concurrent requests observed.
func (d *FakeDevice) MaxInFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxInflight
}

// Requests returns the number of requests received, including those refused
// for bad credentials.
func (d *FakeDevice) Requests() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requests
}

func (d *FakeDevice) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.requests++
		d.inflight++
		if d.inflight > d.maxInflight {
			d.maxInflight = d.inflight
		}
		d.mu.Unlock()
		defer func() {
			d.mu.Lock()
			d.inflight--
			d.mu.Unlock()
		}()
		if d.latency > 0 {
			time.Sleep(d.latency)
		}
		next.ServeHTTP(w, r)
	})
}

func (d *FakeDevice) handleTime(w http.ResponseWriter, r *http.Request) {
	if !d.authorize(w, r) {
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<Time version="2.0" xmlns="http://www.hikvision.com/ver20/XMLSchema">
<timeMode>NTP</timeMode>
<localTime>2024-01-01T00:00:00</localTime>
<timeZone>%s</timeZone>
</Time>`, d.timeZone)
}

type searchBody struct {
	TrackIDs   []int  `xml:"trackIDList>trackID"`
	StartTime  string `xml:"timeSpanList>timeSpan>startTime"`
	EndTime    string `xml:"timeSpanList>timeSpan>endTime"`
	MaxResults int    `xml:"maxResults"`
}

func (d *FakeDevice) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !d.authorize(w, r) {
		return
	}
	body, _ := io.ReadAll(r.Body)
	d.mu.Lock()
	d.searches++
	d.mu.Unlock()

	if d.searchFailure {
		writeDeviceError(w, http.StatusInternalServerError, "Device Error", "hdError")
		return
	}
	var req searchBody
	if err := xml.Unmarshal(body, &req); err != nil {
		writeDeviceError(w, http.StatusBadRequest, "Invalid XML Format", "badXmlFormat")
		return
	}
	start, err1 := time.Parse(deviceLayout, req.StartTime)
	end, err2 := time.Parse(deviceLayout, req.EndTime)
	if err1 != nil || err2 != nil {
		writeDeviceError(w, http.StatusBadRequest, "Invalid Content", "badParameters")
		return
	}
	track := 101
	if len(req.TrackIDs) > 0 {
		track = req.TrackIDs[0]
	}

	var matches []Clip
	for _, clip := range d.clips {
		if clip.Track != track {
			continue
		}
		if clip.End.After(start) && clip.Start.Before(end) {
			matches = append(matches, clip)
		}
		if req.MaxResults > 0 && len(matches) == req.MaxResults {
			break
		}
	}

	w.Header().Set("Content-Type", "application/xml")
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<CMSearchResult version="2.0" xmlns="http://www.hikvision.com/ver20/XMLSchema">`)
	b.WriteString(`<responseStatus>true</responseStatus>`)
	if len(matches) == 0 {
		b.WriteString(`<responseStatusStrg>NO MATCHES</responseStatusStrg><numOfMatches>0</numOfMatches>`)
	} else {
		fmt.Fprintf(&b, `<responseStatusStrg>OK</responseStatusStrg><numOfMatches>%d</numOfMatches><matchList>`, len(matches))
		for _, clip := range matches {
			fmt.Fprintf(&b, `<searchMatchItem><trackID>%d</trackID><mediaSegmentDescriptor><contentType>video</contentType><playbackURI>%s</playbackURI></mediaSegmentDescriptor></searchMatchItem>`,
				track, xmlEscape(d.PlaybackURI(clip)))
		}
		b.WriteString(`</matchList>`)
	}
	b.WriteString(`</CMSearchResult>`)
	_, _ = io.WriteString(w, b.String())
}

// PlaybackURI renders the locator the device advertises for clip.
func (d *FakeDevice) PlaybackURI(clip Clip) string {
	host := strings.TrimPrefix(d.URL, "http://")
	return fmt.Sprintf("rtsp://%s/Streaming/tracks/%d/?starttime=%s&endtime=%s&name=%s&size=%d",
		host, clip.Track, clip.Start.Format(stampLayout), clip.End.Format(stampLayout),
		clip.Start.Format("20060102150405"), len(d.payload))
}

type downloadBody struct {
	PlaybackURI string `xml:"playbackURI"`
}

func (d *FakeDevice) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !d.authorize(w, r) {
		return
	}
	body, _ := io.ReadAll(r.Body)
	var req downloadBody
	if err := xml.Unmarshal(body, &req); err != nil || req.PlaybackURI == "" {
		writeDeviceError(w, http.StatusBadRequest, "Invalid XML Content", "badXmlContent")
		return
	}

	d.mu.Lock()
	d.downloads++
	d.attempts[req.PlaybackURI]++
	attempt := d.attempts[req.PlaybackURI]
	d.mu.Unlock()

	if attempt <= d.downloadFailures {
		writeDeviceError(w, http.StatusInternalServerError, "Device Busy", "deviceBusy")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	flusher, _ := w.(http.Flusher)
	const piece = 4096
	for offset := 0; offset < len(d.payload); offset += piece {
		end := offset + piece
		if end > len(d.payload) {
			end = len(d.payload)
		}
		if _, err := w.Write(d.payload[offset:end]); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
		if offset == 0 {
			select {
			case d.started <- req.PlaybackURI:
			default:
			}
			if d.hold != nil {
				select {
				case <-d.hold:
				case <-r.Context().Done():
					return
				}
			}
		}
	}
}

func writeDeviceError(w http.ResponseWriter, status int, statusString, subStatus string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<ResponseStatus version="2.0" xmlns="http://www.hikvision.com/ver20/XMLSchema">
<statusCode>6</statusCode>
<statusString>%s</statusString>
<subStatusCode>%s</subStatusCode>
</ResponseStatus>`, statusString, subStatus)
}

func (d *FakeDevice) authorize(w http.ResponseWriter, r *http.Request) bool {
	if d.digest {
		if d.validDigest(r) {
			return true
		}
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Digest realm="%s", qop="auth", nonce="%s", opaque="0a1b2c3d"`, deviceRealm, deviceNonce))
		w.WriteHeader(http.StatusUnauthorized)
		return false
	}
	if user, pass, ok := r.BasicAuth(); ok && user == d.Username && pass == d.Password {
		return true
	}
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Basic realm="%s"`, deviceRealm))
	w.WriteHeader(http.StatusUnauthorized)
	return false
}

func (d *FakeDevice) validDigest(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Digest ") {
		return false
	}
	params := parseDigestParams(strings.TrimPrefix(header, "Digest "))
	if params["username"] != d.Username || params["nonce"] != deviceNonce {
		return false
	}
	ha1 := md5Hex(d.Username + ":" + deviceRealm + ":" + d.Password)
	ha2 := md5Hex(r.Method + ":" + params["uri"])
	var expected string
	if qop := params["qop"]; qop != "" {
		expected = md5Hex(strings.Join([]string{ha1, params["nonce"], params["nc"], params["cnonce"], qop, ha2}, ":"))
	} else {
		expected = md5Hex(ha1 + ":" + params["nonce"] + ":" + ha2)
	}
	return params["response"] == expected
}

func parseDigestParams(value string) map[string]string {
	out := make(map[string]string)
	var parts []string
	var current strings.Builder
	quoted := false
	for _, r := range value {
		switch {
		case r == '"':
			quoted = !quoted
			current.WriteRune(r)
		case r == ',' && !quoted:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	parts = append(parts, current.String())
	for _, part := range parts {
		key, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(val), `"`)
	}
	return out
}

func md5Hex(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}

func xmlEscape(value string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(value))
	return b.String()
}
