// Package framesim is an in-memory producer of coordinate frames.
//
// It owns a frame graph, collects frames added since the last Flush and hands them to
// subscribers as one unordered batch, which is how a frame.Mirror expects to be fed:
//
//	g := framesim.New("world", framesim.WithShuffle(7))
//	g.OnAnnounce(func(batch []frame.Source) { mirror.Announce(batch) })
//
//	robot, _ := g.AddFixed(nil, "robot", frame.Identity())
//	_, _ = g.AddVariable(robot, "robot/pelvis", frame.Inputs{Translation: [3]frame.Scalar{x}})
//	g.Flush()
package framesim
