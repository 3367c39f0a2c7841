package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ttms-api/internal/dto"
	"github.com/noah-isme/ttms-api/internal/repository"
	"github.com/noah-isme/ttms-api/internal/service"
	"github.com/noah-isme/ttms-api/pkg/cache"
	"github.com/noah-isme/ttms-api/pkg/config"
	"github.com/noah-isme/ttms-api/pkg/database"
	appErrors "github.com/noah-isme/ttms-api/pkg/errors"
	"github.com/noah-isme/ttms-api/pkg/logger"
	"github.com/noah-isme/ttms-api/pkg/storage"
)

const usage = `usage: timetable-cli <command> [flags]

commands:
  generate      regenerate one cohort (-year -course -semester [-seed])
  generate-all  regenerate every cohort found in subjects
  grid          print a cohort grid (-year -course -semester)
  audit         report double bookings and overloaded staff
  export        write csv, pdf or xlsx files (-format [-year -course -semester] [-out] [-prune])
  migrate       apply the embedded schema migrations
`

type services struct {
	generator *service.TimetableGeneratorService
	viewer    *service.TimetableViewService
	auditor   *service.TimetableAuditService
	exporter  *service.TimetableExportService
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unreachable, generation lock only covers this process", zap.Error(err))
		redisClient = nil
	}
	var gridCache *service.CacheService
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
		gridCache = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), nil, cfg.Timetable.GridCacheTTL, logr.Named("cache"))
	}

	validate := validator.New()
	subjects := repository.NewSubjectRepository(db)
	staff := repository.NewStaffRepository(db)
	periods := repository.NewPeriodRepository(db)
	entries := repository.NewTimetableRepository(db)
	svc := services{
		generator: service.NewTimetableGeneratorService(subjects, staff, periods, entries, db, cache.NewGenerationLock(redisClient, cfg.Timetable.LockTTL), gridCache, nil, validate, logr, service.TimetableGeneratorConfig{
			SafetyMargin:     cfg.Timetable.SafetyMargin,
			MaxPerSubjectDay: cfg.Timetable.MaxPerSubjectDay,
			RelaxedDailyCap:  cfg.Timetable.RelaxedDailyCap,
			RoomFallbackID:   cfg.Timetable.RoomFallbackID,
		}),
		viewer:   service.NewTimetableViewService(entries, periods, staff, nil, 0, validate, logr),
		auditor:  service.NewTimetableAuditService(entries, staff, nil, logr, cfg.Timetable.MaxPerSubjectDay),
		exporter: service.NewTimetableExportService(entries, periods, staff, service.TimetableExportRenderers{}, validate, logr),
	}

	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "generate":
		err = runGenerate(ctx, svc, args, os.Stdout)
	case "generate-all":
		err = runGenerateAll(ctx, svc, os.Stdout)
	case "grid":
		err = runGrid(ctx, svc, args, os.Stdout)
	case "audit":
		err = runAudit(ctx, svc, os.Stdout)
	case "export":
		err = runExport(ctx, svc, args, os.Stdout)
	case "migrate":
		err = database.RunMigrations(db.DB, logr)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		appErr := appErrors.FromError(err)
		logr.Error("command failed", zap.String("command", command), zap.String("code", appErr.Code), zap.Error(err))
		os.Exit(1)
	}
}

func cohortFlags(fs *flag.FlagSet) (year, course, semester *string) {
	year = fs.String("year", "", "study year (I, II, III, IV)")
	course = fs.String("course", "", "course id")
	semester = fs.String("semester", "", "semester")
	return
}

func runGenerate(ctx context.Context, svc services, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	year, course, semester := cohortFlags(fs)
	seed := fs.Int64("seed", 0, "fixed random seed (the clock when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := dto.GenerateTimetableRequest{Year: *year, CourseID: *course, Semester: *semester}
	if flagSet(fs, "seed") {
		req.Seed = seed
	}
	resp, err := svc.generator.Generate(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(out, resp)
}

func runGenerateAll(ctx context.Context, svc services, out io.Writer) error {
	outcomes, err := svc.generator.GenerateAll(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "YEAR\tCOURSE\tSEMESTER\tSTATUS\tPLACED\tUNMET")
	for _, o := range outcomes {
		if o.Result == nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t-\t-\n", o.Year, o.CourseID, o.Semester, o.ErrorCode)
			continue
		}
		unmet := 0
		for _, sf := range o.Result.Shortfalls {
			unmet += sf.UnmetHours
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", o.Year, o.CourseID, o.Semester, o.Result.Status, o.Result.PlacedCount, unmet)
	}
	return tw.Flush()
}

func runGrid(ctx context.Context, svc services, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("grid", flag.ContinueOnError)
	year, course, semester := cohortFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	grid, err := svc.viewer.Grid(ctx, dto.CohortQuery{Year: *year, CourseID: *course, Semester: *semester})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{"DAY"}
	for _, p := range grid.Periods {
		header = append(header, fmt.Sprintf("P%d", p.PeriodNo))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, day := range grid.Days {
		cells := make([]string, 0, len(grid.Periods))
		for _, cell := range grid.Grid[day] {
			if cell == "" {
				cell = "-"
			}
			cells = append(cells, cell)
		}
		fmt.Fprintf(tw, "%s\t%s\n", day, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func runAudit(ctx context.Context, svc services, out io.Writer) error {
	report, err := svc.auditor.Conflicts(ctx)
	if err != nil {
		return err
	}
	workload, err := svc.auditor.Workload(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "checked %d entries, %d conflicts\n", report.CheckedEntries, len(report.Conflicts))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, c := range report.Conflicts {
		fmt.Fprintf(tw, "%s\t%s\t%s\tP%d\t%s\n", c.Dimension, c.Key, c.Day, c.PeriodNo, strings.Join(c.EntryIDs, ","))
	}
	for _, w := range workload {
		if w.Overloaded {
			fmt.Fprintf(tw, "OVERLOAD\t%s\t%s\tmax %d\tassigned %d, scheduled %d\n", w.StaffCode, w.Name, w.MaxHours, w.AssignedHours, w.ScheduledHours)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(report.Conflicts) > 0 {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%d timetable conflicts found", len(report.Conflicts)))
	}
	return nil
}

func runExport(ctx context.Context, svc services, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	year, course, semester := cohortFlags(fs)
	format := fs.String("format", "xlsx", "csv, pdf or xlsx")
	dir := fs.String("out", "./exports", "output directory")
	prune := fs.Duration("prune", 0, "delete exports older than this before writing (0 keeps everything)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewLocalStorage(*dir)
	if err != nil {
		return err
	}
	if *prune > 0 {
		deleted, err := store.CleanupOlderThan(*prune)
		if err != nil {
			return err
		}
		if len(deleted) > 0 {
			fmt.Fprintf(out, "pruned %d old exports\n", len(deleted))
		}
	}

	file, err := svc.exporter.Export(ctx, dto.ExportQuery{Format: *format, Year: *year, CourseID: *course, Semester: *semester})
	if err != nil {
		return err
	}
	path, err := store.Save(file.Filename, file.Body)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %s (%d bytes) at %s\n", path, len(file.Body), time.Now().Format(time.RFC3339))
	return nil
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
