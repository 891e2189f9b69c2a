package saga_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fragworks/fragstats/internal/domain/event"
	"github.com/fragworks/fragstats/internal/saga"
	"github.com/fragworks/fragstats/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	m.Run()
}

type testData struct {
	log []string
}

type fakeStep struct {
	name       string
	execute    func(sc *saga.Context[testData]) error
	compensate func(sc *saga.Context[testData]) error
}

func (s *fakeStep) Name() string { return s.name }

func (s *fakeStep) Execute(_ context.Context, sc *saga.Context[testData]) error {
	if s.execute != nil {
		return s.execute(sc)
	}
	sc.Data.log = append(sc.Data.log, "exec:"+s.name)
	return nil
}

func (s *fakeStep) Compensate(_ context.Context, sc *saga.Context[testData]) error {
	if s.compensate != nil {
		return s.compensate(sc)
	}
	sc.Data.log = append(sc.Data.log, "comp:"+s.name)
	return nil
}

func killEvent() event.Event {
	return event.NewKill("s1", event.KillPayload{KillerID: "k", VictimID: "v", Weapon: "ak47"})
}

func TestSagaRun(t *testing.T) {
	Convey("Given a saga whose steps all succeed", t, func() {
		steps := []saga.Step[testData]{
			&fakeStep{name: "a"},
			&fakeStep{name: "b"},
			&fakeStep{name: "c"},
		}
		s := saga.New("test", steps)
		data := &testData{}

		Convey("When it runs", func() {
			res, err := s.Run(context.Background(), killEvent(), data)

			Convey("Then every step executes in order and nothing compensates", func() {
				So(err, ShouldBeNil)
				So(res.Success, ShouldBeTrue)
				So(res.CompletedSteps, ShouldEqual, 3)
				So(res.TotalSteps, ShouldEqual, 3)
				So(res.CompensatedSteps, ShouldEqual, 0)
				So(data.log, ShouldResemble, []string{"exec:a", "exec:b", "exec:c"})
			})
		})
	})

	Convey("Given a saga whose third step fails", t, func() {
		boom := errors.New("boom")
		steps := []saga.Step[testData]{
			&fakeStep{name: "a"},
			&fakeStep{name: "b"},
			&fakeStep{name: "c", execute: func(*saga.Context[testData]) error { return boom }},
		}
		s := saga.New("test", steps)
		data := &testData{}

		Convey("When it runs", func() {
			res, err := s.Run(context.Background(), killEvent(), data)

			Convey("Then completed steps compensate in reverse order", func() {
				So(err, ShouldEqual, boom)
				So(res.Success, ShouldBeFalse)
				So(res.CompletedSteps, ShouldEqual, 2)
				So(res.CompensatedSteps, ShouldEqual, 2)
				So(data.log, ShouldResemble, []string{"exec:a", "exec:b", "comp:b", "comp:a"})
			})

			Convey("And the failed step is never compensated", func() {
				So(data.log, ShouldNotContain, "comp:c")
			})
		})
	})

	Convey("Given a saga with zero steps", t, func() {
		s := saga.New[testData]("empty", nil)

		res, err := s.Run(context.Background(), killEvent(), &testData{})

		Convey("Then it is trivially successful", func() {
			So(err, ShouldBeNil)
			So(res.Success, ShouldBeTrue)
			So(res.TotalSteps, ShouldEqual, 0)
		})
	})

	Convey("Given a compensation that itself fails", t, func() {
		boom := errors.New("boom")
		compErr := errors.New("compensation broken")
		steps := []saga.Step[testData]{
			&fakeStep{name: "a"},
			&fakeStep{name: "b", compensate: func(*saga.Context[testData]) error { return compErr }},
			&fakeStep{name: "c", execute: func(*saga.Context[testData]) error { return boom }},
		}
		s := saga.New("test", steps)
		data := &testData{}

		Convey("When it runs", func() {
			res, err := s.Run(context.Background(), killEvent(), data)

			Convey("Then the sweep continues and the step error is surfaced", func() {
				So(err, ShouldEqual, boom)
				So(res.CompensatedSteps, ShouldEqual, 2)
				So(data.log, ShouldContain, "comp:a")
			})
		})
	})

	Convey("Given a step that panics with a non-error value", t, func() {
		steps := []saga.Step[testData]{
			&fakeStep{name: "a"},
			&fakeStep{name: "b", execute: func(*saga.Context[testData]) error { panic("not an error") }},
		}
		s := saga.New("test", steps)
		data := &testData{}

		Convey("When it runs", func() {
			res, err := s.Run(context.Background(), killEvent(), data)

			Convey("Then the panic is normalized into an error and compensation runs", func() {
				So(errors.Is(err, saga.ErrStepPanic), ShouldBeTrue)
				So(res.Success, ShouldBeFalse)
				So(data.log, ShouldResemble, []string{"exec:a", "comp:a"})
			})
		})
	})

	Convey("Given a step without a declared name", t, func() {
		steps := []saga.Step[testData]{&fakeStep{name: ""}}
		s := saga.New("test", steps)

		res, err := s.Run(context.Background(), killEvent(), &testData{})

		Convey("Then it still executes", func() {
			So(err, ShouldBeNil)
			So(res.CompletedSteps, ShouldEqual, 1)
		})
	})
}

func TestSagaCompensationSweep(t *testing.T) {
	Convey("Given a five-step saga failing at each position in turn", t, func() {
		boom := errors.New("boom")

		for k := 1; k <= 5; k++ {
			Convey(fmt.Sprintf("When step %d fails", k), func() {
				names := []string{"s1", "s2", "s3", "s4", "s5"}
				steps := make([]saga.Step[testData], 0, len(names))
				for i, name := range names {
					step := &fakeStep{name: name}
					if i == k-1 {
						step.execute = func(*saga.Context[testData]) error { return boom }
					}
					steps = append(steps, step)
				}
				s := saga.New("sweep", steps)
				data := &testData{}

				res, err := s.Run(context.Background(), killEvent(), data)

				Convey("Then everything before the failure unwinds in reverse", func() {
					So(err, ShouldEqual, boom)
					So(res.CompletedSteps, ShouldEqual, k-1)
					So(res.CompensatedSteps, ShouldEqual, k-1)

					if k == 1 {
						So(data.log, ShouldBeEmpty)
					} else {
						want := make([]string, 0, 2*(k-1))
						for i := 1; i < k; i++ {
							want = append(want, "exec:"+names[i-1])
						}
						for i := k - 1; i >= 1; i-- {
							want = append(want, "comp:"+names[i-1])
						}
						So(data.log, ShouldResemble, want)
					}
					So(data.log, ShouldNotContain, "comp:"+names[k-1])
				})
			})
		}
	})
}

func TestSagaIdentity(t *testing.T) {
	Convey("Given an event with identifiers", t, func() {
		e := killEvent()
		e.CorrelationID = "corr-42"
		s := saga.New("test", []saga.Step[testData]{&fakeStep{name: "a"}})

		res, err := s.Run(context.Background(), e, &testData{})

		Convey("Then the saga reuses them", func() {
			So(err, ShouldBeNil)
			So(res.EventID, ShouldEqual, e.EventID)
			So(res.CorrelationID, ShouldEqual, "corr-42")
		})
	})

	Convey("Given an event without identifiers", t, func() {
		e := event.Event{Type: event.TypePlayerKill, ServerID: "s1", Kill: &event.KillPayload{}}
		s := saga.New[testData]("test", nil)

		res, err := s.Run(context.Background(), e, &testData{})

		Convey("Then identifiers are generated", func() {
			So(err, ShouldBeNil)
			So(res.EventID, ShouldNotBeEmpty)
			So(res.CorrelationID, ShouldNotBeEmpty)
		})
	})
}

func TestLogMonitor(t *testing.T) {
	Convey("Given a saga wired to a log monitor", t, func() {
		monitor := saga.NewLogMonitor(nil)
		boom := errors.New("boom")
		steps := []saga.Step[testData]{
			&fakeStep{name: "a"},
			&fakeStep{name: "b", execute: func(*saga.Context[testData]) error { return boom }},
		}
		s := saga.New("monitored", steps, saga.WithMonitor[testData](monitor))

		Convey("When a run fails", func() {
			_, err := s.Run(context.Background(), killEvent(), &testData{})
			So(err, ShouldEqual, boom)

			Convey("Then the snapshot aggregates the lifecycle", func() {
				snap := monitor.Snapshot()
				So(snap.Started, ShouldEqual, 1)
				So(snap.Failed, ShouldEqual, 1)
				So(snap.Completed, ShouldEqual, 0)
				So(snap.StepsExecuted, ShouldEqual, 1)
				So(snap.StepsCompensated, ShouldEqual, 1)
			})
		})

		Convey("When a run succeeds", func() {
			ok := saga.New("monitored", []saga.Step[testData]{&fakeStep{name: "a"}},
				saga.WithMonitor[testData](monitor))
			_, err := ok.Run(context.Background(), killEvent(), &testData{})
			So(err, ShouldBeNil)
			So(monitor.Snapshot().Completed, ShouldEqual, 1)
		})
	})
}
