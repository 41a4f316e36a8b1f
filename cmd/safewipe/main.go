// SafeWipe Enterprise — утилита санитизации носителей по NIST SP 800-88.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"safewipe_enterprise/internal/cert"
	"safewipe_enterprise/internal/config"
	"safewipe_enterprise/internal/device"
	"safewipe_enterprise/internal/engine"
	"safewipe_enterprise/internal/logging"
	"safewipe_enterprise/internal/nist"
	"safewipe_enterprise/internal/reporting"
	"safewipe_enterprise/internal/security"
	"safewipe_enterprise/internal/verify"
)

func newVerifier(cfg *config.Config, logger *logging.EnterpriseLogger) *verify.Verifier {
	return verify.NewVerifier(verify.Config{
		Samples:          cfg.Verify.Samples,
		SampleSize:       cfg.Verify.SampleSize,
		QualityThreshold: cfg.Verify.QualityThreshold,
	}, logger)
}

var (
	flagConfig   string
	flagVerbose  bool
	flagProfile  string
	flagCategory string
	flagYes      bool
)

func main() {
	root := &cobra.Command{
		Use:   "safewipe",
		Short: "Санитизация носителей по NIST SP 800-88",
		Long: "SafeWipe Enterprise выполняет безвозвратное стирание носителей\n" +
			"по категориям Clear, Purge и Destroy стандарта NIST SP 800-88 Rev.1\n" +
			"с выборочной проверкой и выпуском подписанных сертификатов.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "путь к файлу конфигурации")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "подробный вывод")
	root.PersistentFlags().StringVar(&flagProfile, "profile", "", "профиль настроек (safe|balanced|aggressive|fast)")

	root.AddCommand(
		newListCmd(),
		newRecommendCmd(),
		newWipeCmd(),
		newVerifyCmd(),
		newCertCmd(),
		newDiagnoseCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

// setup загружает конфигурацию и создаёт логгер
func setup() (*config.Config, *logging.EnterpriseLogger, error) {
	var cfg *config.Config
	var err error
	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return nil, nil, err
		}
	} else {
		cfg = config.Default()
	}

	if flagProfile != "" {
		if err := config.ApplyProfile(cfg, flagProfile); err != nil {
			return nil, nil, err
		}
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("некорректная конфигурация: %w", err)
	}

	logger, err := logging.NewEnterpriseLogger(cfg, flagVerbose)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// buildEngine собирает движок со всеми зависимостями
func buildEngine(cfg *config.Config, logger *logging.EnterpriseLogger) (*engine.Engine, *cert.AuditLog, error) {
	authority, err := cert.LoadOrCreateAuthority(
		cfg.Certificate.AuthorityKey, cfg.Certificate.Issuer, cfg.Certificate.Organization)
	if err != nil {
		return nil, nil, err
	}
	audit, err := cert.OpenAuditLog(cfg.Certificate.AuditLog)
	if err != nil {
		return nil, nil, err
	}
	return engine.New(cfg, logger, authority, audit, engine.Dependencies{}), audit, nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"info"},
		Short:   "Показать обнаруженные устройства",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			devices, err := device.DetectDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("Устройства не обнаружены")
				return nil
			}

			for _, d := range devices {
				marker := " "
				switch {
				case d.IsSystemDrive:
					marker = "*"
				case security.ShouldSkipDevice(cfg, &d):
					marker = "x"
				}
				fmt.Printf("%s %-14s %-8s %-24s %8.1f GB  %s\n",
					marker, d.Path, d.Type, d.Model, d.SizeGB(), d.Bus)
			}
			fmt.Println("\n* — системный диск, x — в списке исключений")
			return nil
		},
	}
}

func newRecommendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend <устройство>",
		Short: "Подобрать метод санитизации для устройства",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			cat, err := nist.ParseCategory(flagCategory)
			if err != nil {
				return err
			}

			eng, audit, err := buildEngine(cfg, logger)
			if err != nil {
				return err
			}
			defer audit.Close()

			dev, alg, err := eng.Recommend(args[0], cat)
			if err != nil {
				return err
			}

			fmt.Printf("Устройство:  %s\n", dev)
			fmt.Printf("Категория:   %s\n", alg.Category)
			fmt.Printf("Алгоритм:    %s\n", alg.Name)
			fmt.Printf("Описание:    %s\n", alg.Description)
			if alg.Hardware != nist.HWNone {
				fmt.Printf("Аппаратно:   %s\n", alg.Hardware)
			}
			if len(alg.Passes) > 0 {
				fmt.Printf("Проходы:     %d\n", len(alg.Passes))
			}
			if alg.DestroyInstructions != "" {
				fmt.Printf("\nФизическое уничтожение:\n%s\n", alg.DestroyInstructions)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagCategory, "category", "purge", "категория (clear|purge|destroy)")
	return cmd
}

func newWipeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wipe <устройство>",
		Short: "Выполнить санитизацию устройства",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			if cfg.Security.RequireAdmin && !security.IsAdmin() {
				return fmt.Errorf("требуются права администратора")
			}

			cat, err := nist.ParseCategory(flagCategory)
			if err != nil {
				return err
			}

			eng, audit, err := buildEngine(cfg, logger)
			if err != nil {
				return err
			}
			defer audit.Close()

			dev, alg, err := eng.Recommend(args[0], cat)
			if err != nil {
				return err
			}

			if !flagYes {
				fmt.Printf("ВНИМАНИЕ: все данные на %s будут безвозвратно уничтожены.\n", dev)
				fmt.Printf("Метод: %s. Продолжить? [yes/NO]: ", alg.Name)
				var answer string
				fmt.Scanln(&answer)
				if answer != "yes" {
					fmt.Println("Отменено")
					return nil
				}
			}

			job, err := eng.Submit(args[0], cat)
			if err != nil {
				return err
			}

			// Ctrl+C запрашивает отмену; второй сигнал убивает процесс
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Println("\nПолучен сигнал, отмена задания...")
				job.Cancel()
				signal.Stop(sigCh)
			}()

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-job.Done():
					printOutcome(job, cfg, logger)
					if job.Err() != nil {
						os.Exit(2)
					}
					return nil
				case <-ticker.C:
					p := job.Progress()
					fmt.Printf("\r[%s] проход %d/%d  %.1f%%  %.1f МБ/с   ",
						p.Status, p.Pass+1, p.TotalPasses, p.Percent, p.SpeedMBps)
				}
			}
		},
	}
	cmd.Flags().StringVar(&flagCategory, "category", "purge", "категория (clear|purge)")
	cmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "не запрашивать подтверждение")
	return cmd
}

func printOutcome(job *engine.Job, cfg *config.Config, logger *logging.EnterpriseLogger) {
	p := job.Progress()
	fmt.Printf("\nИтог: %s\n", p.Status)
	if err := job.Err(); err != nil {
		fmt.Printf("Причина: %v\n", err)
	}
	if vr := job.VerificationReport(); vr != nil {
		fmt.Printf("Качество стирания: %.4f (порог %.4f)\n", vr.QualityScore, vr.Threshold)
	}

	if c := job.Certificate(); c != nil {
		path := fmt.Sprintf("certificate-%s.json", job.ID)
		if err := c.Save(path); err != nil {
			fmt.Printf("Сертификат не сохранён: %v\n", err)
		} else {
			fmt.Printf("Сертификат: %s\n", path)
		}
	}

	reporter := reporting.NewReporter(cfg, logger)
	if path, err := reporter.Save(reporting.BuildRunReport([]*engine.Job{job})); err != nil {
		fmt.Printf("Отчёт не сохранён: %v\n", err)
	} else if path != "" {
		fmt.Printf("Отчёт: %s\n", path)
	}
}

func newVerifyCmd() *cobra.Command {
	var expectedByte int
	cmd := &cobra.Command{
		Use:   "verify <устройство>",
		Short: "Проверить качество ранее выполненного стирания",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			verifier := newVerifier(cfg, logger)
			var expected *byte
			if expectedByte >= 0 && expectedByte <= 0xFF {
				b := byte(expectedByte)
				expected = &b
			}

			report, err := verifier.VerifyPath(cmd.Context(), args[0], expected)
			if err != nil {
				return err
			}

			fmt.Printf("Выборок:            %d\n", report.Samples)
			fmt.Printf("Подозрительных:     %d\n", report.SuspiciousSamples)
			fmt.Printf("Найдено сигнатур:   %d\n", len(report.SignatureHits))
			for _, hit := range report.SignatureHits {
				fmt.Printf("  %-6s по смещению %d\n", hit.Signature, hit.Offset)
			}
			fmt.Printf("Качество:           %.4f (порог %.4f)\n", report.QualityScore, report.Threshold)

			reporter := reporting.NewReporter(cfg, logger)
			if path, err := reporter.SaveVerification(args[0], report); err != nil {
				fmt.Printf("Отчёт не сохранён: %v\n", err)
			} else if path != "" {
				fmt.Printf("Отчёт:              %s\n", path)
			}

			if report.Passed {
				fmt.Println("Результат:          ПРОЙДЕНО")
				return nil
			}
			fmt.Println("Результат:          НЕ ПРОЙДЕНО")
			os.Exit(2)
			return nil
		},
	}
	cmd.Flags().IntVar(&expectedByte, "expected-byte", -1, "ожидаемый байт финального паттерна (0-255)")
	return cmd
}

func newCertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cert <файл>",
		Short: "Проверить подпись сертификата санитизации",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			authority, err := cert.LoadOrCreateAuthority(
				cfg.Certificate.AuthorityKey, cfg.Certificate.Issuer, cfg.Certificate.Organization)
			if err != nil {
				return err
			}

			c, err := cert.LoadCertificate(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Задание:     %s\n", c.JobID)
			fmt.Printf("Устройство:  %s (%s, %s)\n", c.DevicePath, c.DeviceModel, c.DeviceSerial)
			fmt.Printf("Метод:       %s / %s, проходов: %d\n", c.Category, c.Algorithm, c.PassCount)
			fmt.Printf("Качество:    %.4f\n", c.Quality)
			fmt.Printf("Выдан:       %s (%s, %s)\n", c.IssuedAt.Format(time.RFC3339), c.Issuer, c.Organization)

			if err := c.Verify(authority.PublicKey()); err != nil {
				fmt.Println("Подпись:     НЕДЕЙСТВИТЕЛЬНА")
				return err
			}
			fmt.Println("Подпись:     действительна")
			return nil
		},
	}
	return cmd
}

func newDiagnoseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Проверить готовность окружения",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := device.RunDiagnostics()

			fmt.Printf("Платформа:       %s\n", report.Platform)
			fmt.Printf("Права root:      %t\n", report.Privileged)
			fmt.Printf("Доступ к sysfs:  %t\n", report.SysfsReadable)
			fmt.Printf("Источник ГСЧ:    %t\n", report.EntropyOK)
			fmt.Printf("Устройств:       %d\n", report.DeviceCount)
			for _, w := range report.Warnings {
				fmt.Printf("ПРЕДУПРЕЖДЕНИЕ: %s\n", w)
			}
			if !report.Healthy() {
				os.Exit(3)
			}
			return nil
		},
	}
}
