package main

type ConfigFlag struct {
	Config string `help:"config file path (JSON, or INI with an .ini extension)" short:"c" required:"" type:"existingfile"`
}

type Command struct {
	Version struct{} `cmd:"" help:"Print version information."`
	Harvest struct {
		ConfigFlag
	} `cmd:"" help:"Move new and resubmitted media into the staging area and index them."`
	Offload struct {
		ConfigFlag
		BackupGroup int  `help:"backup group to offload" short:"g"`
		All         bool `help:"ignore --backup-group and offload every backup group in turn"`
	} `cmd:"" help:"Send indexed media of a backup group to remote storage."`
	PublishMasters struct {
		ConfigFlag
	} `cmd:"" name:"publish-masters" help:"Create master files."`
	PublishWww struct {
		ConfigFlag
	} `cmd:"" name:"publish-www" help:"Create web files from the master files."`
	Cleanup struct {
		ConfigFlag
	} `cmd:"" help:"Remove staging and tar area directories that are no longer needed."`
	Daemon struct {
		ConfigFlag
	} `cmd:"" help:"Run every stage on the schedules of the config file."`
}
