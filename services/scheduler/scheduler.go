// Package scheduler runs the periodic jobs of the canteen.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/attendance"
	"github.com/trezcool/canteen/services/report"
)

const (
	AbsenceAlertName     = "absence-alert"
	absenceAlertTemplate = "absence_alert"
	jobTimeout           = 5 * time.Minute
)

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, kvMap(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s: %v", msg, err), err, kvMap(keysAndValues))
}

func kvMap(keysAndValues []interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		m[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return m
}

type Scheduler struct {
	cron   *cron.Cron
	logger core.Logger
}

func New(conf *core.Config, logger core.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(conf.Canteen.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Add schedules job on a standard 5-field cron spec.
func (s *Scheduler) Add(name, spec string, job cron.Job) error {
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return errors.Wrapf(err, "scheduling %s (%s)", name, spec)
	}
	s.logger.Info(fmt.Sprintf("scheduler: %s scheduled (%s)", name, spec))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for the running jobs or ctx, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// AbsenceAlertJob e-mails the students absent for the configured window, with the PDF attached.
type AbsenceAlertJob struct {
	attSvc     attendance.Service
	gen        *report.Generator
	mailSvc    core.EmailService
	recipients []mail.Address
	appName    string
	logger     core.Logger
}

var _ cron.Job = (*AbsenceAlertJob)(nil)

func NewAbsenceAlertJob(
	conf *core.Config,
	attSvc attendance.Service,
	gen *report.Generator,
	mailSvc core.EmailService,
	logger core.Logger,
) *AbsenceAlertJob {
	return &AbsenceAlertJob{
		attSvc:     attSvc,
		gen:        gen,
		mailSvc:    mailSvc,
		recipients: conf.Canteen.AlertRecipients,
		appName:    conf.AppName,
		logger:     logger,
	}
}

type absenceAlertData struct {
	AppName string
	attendance.Absentees
}

func (job *AbsenceAlertJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	sent, err := job.Execute(ctx)
	if err != nil {
		job.logger.Error(fmt.Sprintf("%s: %v", AbsenceAlertName, err), err)
		return
	}
	job.logger.Info(fmt.Sprintf("%s: done (sent: %t)", AbsenceAlertName, sent))
}

// Execute sends the alert. sent is false when there is nobody to notify or nobody absent.
func (job *AbsenceAlertJob) Execute(ctx context.Context) (sent bool, err error) {
	if len(job.recipients) == 0 {
		return false, nil
	}

	abs, err := job.attSvc.LongAbsentees(ctx, core.Date{}, 0)
	if err != nil {
		return false, errors.Wrap(err, "computing absentees")
	}
	if len(abs.Students) == 0 {
		return false, nil
	}

	var pdf bytes.Buffer
	if err = job.gen.AbsenteesPDF(&pdf, abs); err != nil {
		return false, err
	}

	msg := &core.EmailMessage{
		To:           job.recipients,
		Subject:      fmt.Sprintf("%d student(s) absent for %d days", len(abs.Students), abs.Days),
		TemplateName: absenceAlertTemplate,
		TemplateData: absenceAlertData{AppName: job.appName, Absentees: abs},
	}
	if err = msg.Attach(&pdf, fmt.Sprintf("absentees-%s.pdf", abs.AsOf), "application/pdf"); err != nil {
		return false, err
	}
	job.mailSvc.SendMessages(msg)
	return true, nil
}
