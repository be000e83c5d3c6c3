package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"example.com/jsonblog/internal/models"
)

// Fires concurrent likes at one post and compares the final counter with
// the number of accepted requests. Any difference is a lost update.
func main() {
	// --- Command-line flags ---
	var server string
	var total int
	var concurrency int
	var csvFile string
	var trimPercent float64

	flag.StringVar(&server, "server", "http://localhost:5000", "server base URL")
	flag.IntVar(&total, "n", 1000, "total number of likes to send")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines")
	flag.StringVar(&csvFile, "csv", "latencies.csv", "CSV file to save latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.Parse()

	// Redirects are the success signal, do not follow them
	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	// --- Create the target post ---
	title := fmt.Sprintf("load-post-%d", time.Now().UnixNano())
	resp, err := client.PostForm(server+"/add", url.Values{
		"author":  {"http_load"},
		"title":   {title},
		"content": {"likes under load"},
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create post: %v", err))
	}
	resp.Body.Close()

	post, err := findPost(client, server, title)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Created post %s\n", post.ID)

	// --- Start concurrent goroutines for load test ---
	jobs := make(chan struct{}, total)
	for i := 0; i < total; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	var wg sync.WaitGroup
	var accepted int64
	var failed int64
	latencySlices := make([][]float64, concurrency) // each goroutine records latencies

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			var localLatencies []float64

			for range jobs {
				start := time.Now()
				resp, err := client.Get(server + "/like/" + post.ID)
				localLatencies = append(localLatencies, time.Since(start).Seconds()*1000)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				if resp.StatusCode == http.StatusFound {
					atomic.AddInt64(&accepted, 1)
				} else {
					atomic.AddInt64(&failed, 1)
				}
			}

			latencySlices[idx] = localLatencies
		}(i)
	}

	wg.Wait()

	after, err := findPost(client, server, title)
	if err != nil {
		panic(err)
	}

	// --- Merge all latencies ---
	var allLatencies []float64
	for _, slice := range latencySlices {
		allLatencies = append(allLatencies, slice...)
	}
	sort.Float64s(allLatencies)

	fmt.Printf("Likes sent: %d  accepted: %d  failed: %d\n", total, accepted, failed)
	fmt.Printf("Final likes: %d  lost updates: %d\n", after.LikeCount(), accepted-int64(after.LikeCount()))
	fmt.Printf("Latency (ms): trimmed_mean=%.2f p50=%.2f p90=%.2f p99=%.2f\n",
		trimmedMean(allLatencies, trimPercent),
		percentile(allLatencies, 50),
		percentile(allLatencies, 90),
		percentile(allLatencies, 99))

	// --- Save latencies to CSV ---
	f, err := os.Create(csvFile)
	if err != nil {
		fmt.Printf("Failed to create CSV file: %v\n", err)
		return
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	w.Write([]string{"latency_ms"})
	for _, d := range allLatencies {
		w.Write([]string{fmt.Sprintf("%.3f", d)})
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}

// findPost looks the post up by its unique title through the JSON API.
func findPost(client *http.Client, server, title string) (models.Post, error) {
	resp, err := client.Get(server + "/api/posts")
	if err != nil {
		return models.Post{}, fmt.Errorf("list posts: %w", err)
	}
	defer resp.Body.Close()

	var posts []models.Post
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return models.Post{}, fmt.Errorf("decode posts: %w", err)
	}
	for _, p := range posts {
		if p.Title == title {
			return p, nil
		}
	}
	return models.Post{}, fmt.Errorf("post %q not found", title)
}

// trimmedMean calculates mean latency after trimming top/bottom trimPercent values
func trimmedMean(data []float64, trimPercent float64) float64 {
	if len(data) == 0 {
		return 0
	}
	trim := int(float64(len(data)) * trimPercent / 100.0)
	if trim*2 >= len(data) {
		trim = len(data) / 2
	}
	trimmed := data[trim : len(data)-trim]
	if len(trimmed) == 0 {
		return data[len(data)/2]
	}
	var sum float64
	for _, v := range trimmed {
		sum += v
	}
	return sum / float64(len(trimmed))
}

// percentile calculates the p-th percentile from sorted data
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	k := (p / 100.0) * float64(len(data)-1)
	f := int(k)
	c := f + 1
	if c >= len(data) {
		return data[len(data)-1]
	}
	return data[f]*(float64(c)-k) + data[c]*(k-float64(f))
}
