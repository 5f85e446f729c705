// 包 config：环境变量配置与静态图层清单
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dumpwatch/internal/boundary"
	"dumpwatch/internal/geo"
	"dumpwatch/internal/hazard"
	"dumpwatch/internal/office"
)

// HazardDef：一类敏感要素的静态配置，启动时解析一次
type HazardDef struct {
	ID       string
	Label    string
	File     string
	Distance float64
	Unit     hazard.Unit
	Tier     hazard.Tier
}

// DefaultHazards 西北省部署使用的类别清单
var DefaultHazards = []HazardDef{
	{ID: "primary_schools", Label: "Primary School", File: "Primary_Schools.geojson", Distance: 100, Unit: hazard.Meters, Tier: hazard.Critical},
	{ID: "hospitals", Label: "Hospital", File: "government_hospitals.geojson", Distance: 250, Unit: hazard.Meters, Tier: hazard.Critical},
	{ID: "schools", Label: "General School", File: "schools.geojson", Distance: 300, Unit: hazard.Meters, Tier: hazard.High},
	{ID: "tourist_spots", Label: "Tourist Spot", File: "tourist_spots.geojson", Distance: 500, Unit: hazard.Meters, Tier: hazard.High},
	{ID: "lakes", Label: "Lake", File: "Lake.geojson", Distance: 150, Unit: hazard.Meters, Tier: hazard.Medium},
	{ID: "rivers", Label: "River", File: "River.geojson", Distance: 150, Unit: hazard.Meters, Tier: hazard.Medium},
}

// HazardSource：已解析位置的类别配置
type HazardSource struct {
	HazardDef
	Source geo.Source
}

// Layers：全部几何数据源
type Layers struct {
	Province        geo.Source
	Subdivisions    geo.Source
	Offices         geo.Source
	Hazards         []HazardSource
	SubdivisionProp string
	OfficeNameProp  string
	OfficePhoneProp string
}

type Config struct {
	Addr            string
	APIBase         string
	RemoteURL       string
	RemoteTimeout   time.Duration
	GeodataDir      string
	GeodataBaseURL  string
	LoadTimeout     time.Duration
	VerifyTolerance float64
	OfficeRadiusKm  float64
	AdminToken      string
	AssessCacheSize int
	AssessCacheTTL  time.Duration
	MirrorInterval  time.Duration
	RateLimitQPS    int
	Layers          Layers
}

// DefaultVerifyTolerance 约 1m
const DefaultVerifyTolerance = 1e-5

// FromEnv 读取环境变量；GEODATA_LATLON 以逗号列出坐标为纬度在前的图层名
func FromEnv() (Config, error) {
	c := Config{
		Addr:            envOr("ADDR", ":8080"),
		APIBase:         envOr("API_BASE", "/api"),
		RemoteURL:       os.Getenv("REMOTE_STORE_URL"),
		RemoteTimeout:   time.Duration(envInt("REMOTE_TIMEOUT_MS", 15000)) * time.Millisecond,
		GeodataDir:      envOr("GEODATA_DIR", filepath.Join("data", "geojson")),
		GeodataBaseURL:  os.Getenv("GEODATA_BASE_URL"),
		LoadTimeout:     time.Duration(envInt("GEODATA_TIMEOUT_S", 30)) * time.Second,
		VerifyTolerance: envFloat("VERIFY_TOLERANCE", DefaultVerifyTolerance),
		OfficeRadiusKm:  envFloat("OFFICE_RADIUS_KM", office.DefaultRadiusKm),
		AdminToken:      os.Getenv("ADMIN_TOKEN"),
		AssessCacheSize: envInt("ASSESS_CACHE_SIZE", 4096),
		AssessCacheTTL:  time.Duration(envInt("ASSESS_CACHE_TTL_S", 3600)) * time.Second,
		MirrorInterval:  time.Duration(envInt("MIRROR_INTERVAL_S", 0)) * time.Second,
		RateLimitQPS:    envInt("RATE_LIMIT_QPS", 0),
	}
	if c.RemoteURL != "" {
		if u, err := url.Parse(c.RemoteURL); err != nil || u.Scheme == "" || u.Host == "" {
			return c, fmt.Errorf("REMOTE_STORE_URL: invalid url %q", c.RemoteURL)
		}
	}
	if c.VerifyTolerance <= 0 {
		return c, fmt.Errorf("VERIFY_TOLERANCE must be positive")
	}
	latlon := map[string]bool{}
	for _, n := range strings.Split(os.Getenv("GEODATA_LATLON"), ",") {
		if n = strings.TrimSpace(n); n != "" {
			latlon[n] = true
		}
	}
	src := func(name, file string) geo.Source {
		order := geo.LonLat
		if latlon[name] {
			order = geo.LatLon
		}
		return geo.Source{Name: name, Location: c.location(file), Order: order}
	}
	c.Layers = Layers{
		Province:        src("province", envOr("PROVINCE_FILE", "nwp_boundary.geojson")),
		Subdivisions:    src("subdivisions", envOr("SUBDIVISION_FILE", "DSD_N.geojson")),
		Offices:         src("offices", envOr("OFFICE_FILE", "Office.geojson")),
		SubdivisionProp: envOr("SUBDIVISION_NAME_PROP", boundary.DefaultNameProperty),
		OfficeNameProp:  envOr("OFFICE_NAME_PROP", office.DefaultNameProp),
		OfficePhoneProp: envOr("OFFICE_PHONE_PROP", office.DefaultPhoneProp),
	}
	for _, h := range DefaultHazards {
		c.Layers.Hazards = append(c.Layers.Hazards, HazardSource{HazardDef: h, Source: src(h.ID, h.File)})
	}
	return c, nil
}

// location：配置了 GEODATA_BASE_URL 时拼接 URL，否则为数据目录下的文件
func (c Config) location(file string) string {
	if c.GeodataBaseURL != "" {
		return strings.TrimRight(c.GeodataBaseURL, "/") + "/" + file
	}
	return filepath.Join(c.GeodataDir, file)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
