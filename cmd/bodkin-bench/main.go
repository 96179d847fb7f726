package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/longbow-bodkin/internal/config"
	"github.com/23skdu/longbow-bodkin/internal/device"
	"github.com/23skdu/longbow-bodkin/internal/format"
	"github.com/23skdu/longbow-bodkin/internal/logger"
)

var (
	width       = flag.Int("width", 4096, "Matrix width in elements (multiple of 64)")
	height      = flag.Int("height", 4096, "Matrix height in elements (multiple of 64)")
	inFormat    = flag.String("in", "fp32", "Input format: fp32, fp16, bf16, fp8e4m3, fp8e5m2")
	outFormat   = flag.String("out", "fp8e4m3", "Output format")
	iters       = flag.Int("iters", 20, "Iterations per benchmark")
	workers     = flag.Int("workers", 0, "Worker goroutines per launch (0 = NumCPU)")
	copyBlock   = flag.Int("copy-block", 0, "Copy kernel block size (0 = config default)")
	transBlock  = flag.Int("transpose-block", 0, "Transpose kernel block size (0 = config default)")
	absmaxIters = flag.Int("absmax-iters", 0, "Vectors per thread in the absmax kernel (0 = config default)")
	gelu        = flag.Bool("gelu", false, "Fuse GELU forward into the copy pass")
	logLevel    = flag.String("log-level", "warn", "Log level: trace, debug, info, warn, error")
	metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
)

func main() {
	flag.Parse()
	logger.Setup(*logLevel, "console")

	cfg := config.Default()
	cfg.Workers = *workers
	if *copyBlock > 0 {
		cfg.CopyBlockSize = *copyBlock
	}
	if *transBlock > 0 {
		cfg.TransposeBlockSize = *transBlock
	}
	if *absmaxIters > 0 {
		cfg.AbsmaxIterations = *absmaxIters
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	inFmt, err := format.Parse(*inFormat)
	if err != nil {
		log.Fatalf("Bad -in: %v", err)
	}
	outFmt, err := format.Parse(*outFormat)
	if err != nil {
		log.Fatalf("Bad -out: %v", err)
	}
	if *width%device.TransposeTileSize != 0 || *height%device.TransposeTileSize != 0 {
		log.Fatalf("Dimensions must be multiples of %d, got %dx%d",
			device.TransposeTileSize, *width, *height)
	}

	if *metricsAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
				log.Printf("Metrics server failed: %v", err)
			}
		}()
		fmt.Printf("Serving metrics on %s/metrics\n", *metricsAddr)
	}

	n := *width * *height
	fmt.Printf("Benchmarking %dx%d (%d elements), %s -> %s, %d workers\n",
		*width, *height, n, inFmt, outFmt, cfg.EffectiveWorkers())

	src, err := device.NewTensor(make([]byte, n*inFmt.Size()), inFmt, n)
	if err != nil {
		log.Fatalf("Source tensor: %v", err)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < n; i++ {
		src.Set(i, rng.Float32()*2-1)
	}
	var absmax uint32
	scale := float32(1)
	src.Descale = &scale

	dst, err := device.NewTensor(make([]byte, n*outFmt.Size()), outFmt, n)
	if err != nil {
		log.Fatalf("Destination tensor: %v", err)
	}
	dst.Scale = &scale
	dst.Absmax = &absmax

	opts := device.LaunchOptions{Workers: cfg.Workers}
	if *gelu {
		opts.Elementwise = device.GELUForward
	}

	copyOpts := opts
	copyOpts.BlockSize = cfg.CopyBlockSize
	runBench("copy", n, func(o device.LaunchOptions) error {
		return device.Copy(dst, src, o)
	}, copyOpts)

	transOpts := opts
	transOpts.BlockSize = cfg.TransposeBlockSize
	runBench("transpose", n, func(o device.LaunchOptions) error {
		return device.Transpose(dst, src, *width, *height, o)
	}, transOpts)

	absmaxOpts := opts
	absmaxOpts.AbsmaxIterations = cfg.AbsmaxIterations
	runBench("update_absmax", n, func(o device.LaunchOptions) error {
		return device.UpdateAbsmax(dst, o)
	}, absmaxOpts)

	benchCache(src, *width, *height, outFmt)

	fmt.Printf("Final absmax: %g\n", device.AbsmaxValue(&absmax))
}

// runBench enqueues iters launches on a fresh stream and reports element
// throughput over the whole batch.
func runBench(name string, elems int, launch func(device.LaunchOptions) error, opts device.LaunchOptions) {
	stream := device.NewStream(name)
	defer stream.Close()
	opts.Stream = stream

	// warm up once so first-touch costs stay out of the timing
	if err := launch(opts); err != nil {
		log.Fatalf("%s: %v", name, err)
	}
	stream.Synchronize()

	start := time.Now()
	for i := 0; i < *iters; i++ {
		if err := launch(opts); err != nil {
			log.Fatalf("%s: %v", name, err)
		}
	}
	stream.Synchronize()
	elapsed := time.Since(start)

	total := float64(elems) * float64(*iters)
	fmt.Printf("  %-16s %10.1f Melem/s  (%v / iter)\n",
		name, total/elapsed.Seconds()/1e6, elapsed/time.Duration(*iters))
}

func benchCache(src device.Tensor, width, height int, outFmt format.Type) {
	scratch := device.NewScratchAllocator(memory.NewGoAllocator())
	defer scratch.Teardown()
	cache := device.NewTransposedCache(scratch)
	stream := device.NewStream("cache")
	defer stream.Close()

	const owner = 1
	start := time.Now()
	if _, err := cache.GetTransposed(src, owner, height, width, outFmt, true, false, stream); err != nil {
		log.Fatalf("cache miss path: %v", err)
	}
	stream.Synchronize()
	missTime := time.Since(start)

	start = time.Now()
	for i := 0; i < *iters; i++ {
		if _, err := cache.GetTransposed(src, owner, height, width, outFmt, true, false, stream); err != nil {
			log.Fatalf("cache hit path: %v", err)
		}
	}
	stream.Synchronize()
	hitTime := time.Since(start) / time.Duration(*iters)

	fmt.Printf("  %-16s miss %v, hit %v (%d bytes scratch)\n",
		"transpose_cache", missTime, hitTime, scratch.AllocatedBytes())
}
